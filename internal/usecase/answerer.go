package usecase

import (
	"context"
	"errors"
	"strings"

	"interview-gate/internal/domain"
)

const (
	answerTemperature = 0.35
	answerMaxTokens   = 600
)

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage, settings domain.ChatSettings) (string, error)
}

// ContextSource provides the knowledge block embedded in the persona prompt.
type ContextSource interface {
	ContextBlock() string
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// PersonaAnswerer is the AnswerGenerator backed by a chat completion model.
type PersonaAnswerer struct {
	llm       LLMClient
	knowledge ContextSource
	model     string
}

func NewPersonaAnswerer(llm LLMClient, knowledge ContextSource, model string) (*PersonaAnswerer, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if knowledge == nil {
		return nil, errors.New("usecase: knowledge source must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	return &PersonaAnswerer{llm: llm, knowledge: knowledge, model: model}, nil
}

// Generate answers an admitted question. Every failure, including an empty
// completion, is a *GenerationError.
func (a *PersonaAnswerer) Generate(ctx context.Context, questionText, category string, visitor domain.Visitor) (string, error) {
	messages := buildPromptMessages(a.knowledge.ContextBlock(), questionText, category, visitor)
	raw, err := a.llm.Chat(ctx, a.model, messages, domain.ChatSettings{
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	})
	if err != nil {
		genErr := &GenerationError{Err: err}
		if status, ok := upstreamStatusCode(err); ok {
			genErr.StatusCode = status
		}
		return "", genErr
	}
	answer := strings.TrimSpace(raw)
	if answer == "" {
		return "", &GenerationError{Err: errors.New("empty completion")}
	}
	return answer, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
