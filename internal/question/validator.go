// Package question screens inbound questions for prompt injection and
// off-topic content and assigns a topic category.
package question

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// GeneralCategory is assigned when the anchor is present but no category
// keyword matched.
const GeneralCategory = "general"

// TopicCatalog supplies the externally configured allowed topics, consulted
// after the built-in categories.
type TopicCatalog interface {
	AllowedTopics() []string
}

// Outcome is the result of Validate. Empty Category and Reason mean none.
type Outcome struct {
	Allowed  bool   `json:"allowed"`
	Category string `json:"category,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type category struct {
	name     string
	keywords []string
}

// Validator applies a compiled Policy. It holds no mutable state and is safe
// for concurrent use.
type Validator struct {
	anchor            string
	emptyMessage      string
	blockedMessage    string
	outOfScopeMessage string
	banned            []*regexp.Regexp
	categories        []category
	topics            TopicCatalog
}

// NewValidator compiles the policy patterns. topics may be nil.
func NewValidator(p Policy, topics TopicCatalog) (*Validator, error) {
	anchor := strings.ToLower(strings.TrimSpace(p.Anchor))
	if anchor == "" {
		return nil, errors.New("question: anchor must not be empty")
	}

	banned := make([]*regexp.Regexp, 0, len(p.BannedPatterns))
	for _, pattern := range p.BannedPatterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("question: compile banned pattern %q: %w", pattern, err)
		}
		banned = append(banned, re)
	}

	categories := make([]category, 0, len(p.Categories))
	for _, c := range p.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, errors.New("question: category name must not be empty")
		}
		keywords := make([]string, 0, len(c.Keywords))
		for _, kw := range c.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		categories = append(categories, category{name: name, keywords: keywords})
	}

	return &Validator{
		anchor:            anchor,
		emptyMessage:      p.EmptyMessage,
		blockedMessage:    p.BlockedMessage,
		outOfScopeMessage: p.OutOfScopeMessage,
		banned:            banned,
		categories:        categories,
		topics:            topics,
	}, nil
}

// Validate decides whether a question may be answered. Steps run in a fixed
// order and the first decisive step wins: empty text, banned patterns, then
// the anchor and category checks.
func (v *Validator) Validate(text string) Outcome {
	normalized := normalize(text)
	if normalized == "" {
		return Outcome{Reason: v.emptyMessage}
	}

	for _, re := range v.banned {
		if re.MatchString(normalized) {
			return Outcome{Reason: v.blockedMessage}
		}
	}

	category := v.detectCategory(normalized)
	if !strings.Contains(normalized, v.anchor) {
		if category == "" {
			return Outcome{Reason: v.outOfScopeMessage}
		}
		return Outcome{Allowed: true, Category: category}
	}
	if category == "" {
		category = GeneralCategory
	}
	return Outcome{Allowed: true, Category: category}
}

// DetectCategory returns the first matching built-in category, falling back
// to the topic catalog, or "" when nothing matches.
func (v *Validator) DetectCategory(text string) string {
	return v.detectCategory(normalize(text))
}

func (v *Validator) detectCategory(normalized string) string {
	for _, c := range v.categories {
		for _, kw := range c.keywords {
			if strings.Contains(normalized, kw) {
				return c.name
			}
		}
	}

	if v.topics == nil {
		return ""
	}
	for _, topic := range v.topics.AllowedTopics() {
		needle := strings.ToLower(strings.TrimSpace(topic))
		if needle == "" {
			continue
		}
		if strings.Contains(normalized, needle) {
			return strings.TrimSpace(topic)
		}
	}
	return ""
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
