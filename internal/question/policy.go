package question

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category maps a category name to the keywords that select it.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Policy is the screening configuration. Categories are checked in slice
// order; the first category with a matching keyword wins.
type Policy struct {
	Anchor            string     `yaml:"anchor"`
	EmptyMessage      string     `yaml:"empty_message"`
	BlockedMessage    string     `yaml:"blocked_message"`
	OutOfScopeMessage string     `yaml:"out_of_scope_message"`
	BannedPatterns    []string   `yaml:"banned_patterns"`
	Categories        []Category `yaml:"categories"`
}

const defaultBlockedMessage = "이 서비스는 309의 경력 관련 질문만 응답합니다."

// DefaultPolicy returns the built-in screening tables.
func DefaultPolicy() Policy {
	return Policy{
		Anchor:            "309",
		EmptyMessage:      "질문이 비어 있습니다.",
		BlockedMessage:    defaultBlockedMessage,
		OutOfScopeMessage: defaultBlockedMessage + " 프로덕트/UX/경력 맥락으로 다시 질문해 주세요.",
		BannedPatterns: []string{
			`ignore (all )?previous instructions`,
			`규칙(을)? 무시`,
			`탈옥`,
			`jailbreak`,
			`연애상담`,
			`날씨`,
			`lottery`,
			`system prompt`,
			`시스템 프롬프트`,
			`시스템 메시지`,
			`프롬프트를 알려`,
			`guardrail`,
			`가드레일`,
		},
		Categories: []Category{
			{Name: "career", Keywords: []string{"경력", "career", "이력", "resume", "프로필", "background"}},
			{Name: "projects", Keywords: []string{"프로젝트", "case study", "product", "feature", "project"}},
			{Name: "collaboration", Keywords: []string{"협업", "communication", "team", "stakeholder"}},
			{Name: "process", Keywords: []string{"프로세스", "workflow", "방법론", "process"}},
			{Name: "decision", Keywords: []string{"의사결정", "decision", "trade-off"}},
		},
	}
}

// ParsePolicy decodes a YAML policy document. Fields left out of the document
// keep their DefaultPolicy values; lists present in the document replace the
// defaults wholesale.
func ParsePolicy(raw []byte) (Policy, error) {
	p := DefaultPolicy()
	if strings.TrimSpace(string(raw)) == "" {
		return p, nil
	}
	var doc Policy
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Policy{}, fmt.Errorf("question: decode policy: %w", err)
	}
	if doc.Anchor != "" {
		p.Anchor = doc.Anchor
	}
	if doc.EmptyMessage != "" {
		p.EmptyMessage = doc.EmptyMessage
	}
	if doc.BlockedMessage != "" {
		p.BlockedMessage = doc.BlockedMessage
	}
	if doc.OutOfScopeMessage != "" {
		p.OutOfScopeMessage = doc.OutOfScopeMessage
	}
	if doc.BannedPatterns != nil {
		p.BannedPatterns = doc.BannedPatterns
	}
	if doc.Categories != nil {
		p.Categories = doc.Categories
	}
	return p, nil
}
