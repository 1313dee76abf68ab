// Package knowledge loads the persona knowledge pack that grounds generated
// answers and supplies the allowed topic catalog.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Project is one highlighted project in the pack.
type Project struct {
	Title  string `json:"title"`
	Impact string `json:"impact"`
}

// Pack is the decoded knowledge pack document. It is immutable after Parse.
type Pack struct {
	Summary            string    `json:"summary"`
	CollaborationStyle string    `json:"collaboration_style"`
	Values             string    `json:"values"`
	Projects           []Project `json:"projects"`
	Topics             TopicList `json:"allowed_topics"`
}

// TopicList accepts either a JSON array of strings or a single
// comma-separated string.
type TopicList []string

func (t *TopicList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}
	switch data[0] {
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("knowledge: decode allowed_topics list: %w", err)
		}
		*t = items
	case '"':
		var csv string
		if err := json.Unmarshal(data, &csv); err != nil {
			return fmt.Errorf("knowledge: decode allowed_topics string: %w", err)
		}
		var items []string
		for _, item := range strings.Split(csv, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*t = items
	default:
		// Anything else is treated as no topics.
		*t = nil
	}
	return nil
}

// Parse decodes a knowledge pack JSON document.
func Parse(raw []byte) (*Pack, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("knowledge: pack document is empty")
	}
	var p Pack
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("knowledge: decode pack: %w", err)
	}
	return &p, nil
}

// Load reads the pack from the parameter store.
func Load(ctx context.Context, getter Getter, name string) (*Pack, error) {
	if getter == nil {
		return nil, errors.New("knowledge: getter must not be nil")
	}
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("knowledge: load pack: %w", err)
	}
	return Parse([]byte(raw))
}

// AllowedTopics returns a copy of the configured topic list.
func (p *Pack) AllowedTopics() []string {
	if p == nil || len(p.Topics) == 0 {
		return nil
	}
	out := make([]string, len(p.Topics))
	copy(out, p.Topics)
	return out
}

// ContextBlock formats the pack into the section block embedded in the
// system prompt.
func (p *Pack) ContextBlock() string {
	if p == nil {
		return ""
	}
	highlights := make([]string, 0, len(p.Projects))
	for _, item := range p.Projects {
		highlights = append(highlights, fmt.Sprintf("- %s: %s", item.Title, item.Impact))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== 309 SUMMARY ===\n%s\n\n", p.Summary)
	fmt.Fprintf(&b, "=== COLLABORATION STYLE ===\n%s\n\n", p.CollaborationStyle)
	fmt.Fprintf(&b, "=== VALUES & DECISION FRAMEWORK ===\n%s\n\n", p.Values)
	fmt.Fprintf(&b, "=== PROJECT HIGHLIGHTS ===\n%s\n", strings.Join(highlights, "\n"))
	return b.String()
}
