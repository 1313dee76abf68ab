package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"interview-gate/internal/domain"
	"interview-gate/internal/question"
	"interview-gate/internal/repository"
)

const (
	defaultGenerationTimeout = 20 * time.Second
	defaultRateLimitMessage  = "세션당 허용된 질문 수를 초과했습니다. 새 세션으로 다시 시도해 주세요."
	defaultBlockedMessage    = "이 서비스는 309의 경력 관련 질문만 응답합니다."
)

type Outcome string

const (
	OutcomeRateLimited     Outcome = "RATE_LIMITED"
	OutcomeContentRejected Outcome = "CONTENT_REJECTED"
	OutcomeAnswered        Outcome = "ANSWERED"
)

type VisitorReader interface {
	GetVisitor(ctx context.Context, sessionID string) (domain.Visitor, error)
}

type ConversationWriter interface {
	AppendConversation(ctx context.Context, rec domain.ConversationRecord) (domain.ConversationRecord, error)
}

type Limiter interface {
	Touch(key string) bool
}

type QuestionValidator interface {
	Validate(text string) question.Outcome
}

type AnswerGenerator interface {
	Generate(ctx context.Context, questionText, category string, visitor domain.Visitor) (string, error)
}

type ChatConfig struct {
	GenerationTimeout time.Duration
	RateLimitMessage  string
	BlockedMessage    string
}

// ChatService runs one question through admission, screening and answer
// generation, and logs exactly one conversation record per terminal outcome.
type ChatService struct {
	visitors  VisitorReader
	limiter   Limiter
	validator QuestionValidator
	generator AnswerGenerator
	log       ConversationWriter

	generationTimeout time.Duration
	rateLimitMessage  string
	blockedMessage    string
	now               func() time.Time
}

type AskInput struct {
	SessionID string
	Question  string
}

// AskOutput carries the visitor-facing result. Blocked outcomes are normal
// results, not errors.
type AskOutput struct {
	SessionID string
	Answer    string
	Blocked   bool
	Reason    string
	Category  string
	Outcome   Outcome
}

func NewChatService(v VisitorReader, l Limiter, qv QuestionValidator, g AnswerGenerator, w ConversationWriter, cfg ChatConfig) (*ChatService, error) {
	if v == nil {
		return nil, errors.New("usecase: visitor reader must not be nil")
	}
	if l == nil {
		return nil, errors.New("usecase: limiter must not be nil")
	}
	if qv == nil {
		return nil, errors.New("usecase: question validator must not be nil")
	}
	if g == nil {
		return nil, errors.New("usecase: answer generator must not be nil")
	}
	if w == nil {
		return nil, errors.New("usecase: conversation writer must not be nil")
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = defaultGenerationTimeout
	}
	if strings.TrimSpace(cfg.RateLimitMessage) == "" {
		cfg.RateLimitMessage = defaultRateLimitMessage
	}
	if strings.TrimSpace(cfg.BlockedMessage) == "" {
		cfg.BlockedMessage = defaultBlockedMessage
	}
	return &ChatService{
		visitors:          v,
		limiter:           l,
		validator:         qv,
		generator:         g,
		log:               w,
		generationTimeout: cfg.GenerationTimeout,
		rateLimitMessage:  cfg.RateLimitMessage,
		blockedMessage:    cfg.BlockedMessage,
		now:               time.Now,
	}, nil
}

func (s *ChatService) Ask(ctx context.Context, in AskInput) (AskOutput, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return AskOutput{}, newError(ErrorInvalidInput, "empty_session_id", nil)
	}

	visitor, err := s.visitors.GetVisitor(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AskOutput{}, newError(ErrorSessionNotFound, "unknown_session", nil)
		}
		return AskOutput{}, newError(ErrorInternal, "visitor_lookup_error", err)
	}

	if !s.limiter.Touch(sessionID) {
		return s.finish(ctx, domain.ConversationRecord{
			SessionID: sessionID,
			Question:  in.Question,
			Answer:    s.rateLimitMessage,
			IsBlocked: true,
		}, OutcomeRateLimited)
	}

	verdict := s.validator.Validate(in.Question)
	if !verdict.Allowed {
		reason := verdict.Reason
		if strings.TrimSpace(reason) == "" {
			reason = s.blockedMessage
		}
		return s.finish(ctx, domain.ConversationRecord{
			SessionID: sessionID,
			Question:  in.Question,
			Answer:    reason,
			Category:  verdict.Category,
			IsBlocked: true,
		}, OutcomeContentRejected)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	defer cancel()
	answer, err := s.generator.Generate(genCtx, in.Question, verdict.Category, visitor)
	if err != nil {
		slog.WarnContext(ctx, "answer generation failed",
			"session_id", sessionID,
			"category", verdict.Category,
			"err", err,
		)
		return AskOutput{}, newError(ErrorUpstream, "generation_error", err)
	}

	return s.finish(ctx, domain.ConversationRecord{
		SessionID: sessionID,
		Question:  in.Question,
		Answer:    answer,
		Category:  verdict.Category,
	}, OutcomeAnswered)
}

// finish appends the record for a terminal outcome and builds the response.
func (s *ChatService) finish(ctx context.Context, rec domain.ConversationRecord, outcome Outcome) (AskOutput, error) {
	rec.Timestamp = s.now().UTC()
	if _, err := s.log.AppendConversation(ctx, rec); err != nil {
		return AskOutput{}, newError(ErrorInternal, "conversation_write_error", err)
	}

	slog.InfoContext(ctx, "question handled",
		"outcome", string(outcome),
		"session_id", rec.SessionID,
		"category", rec.Category,
	)

	out := AskOutput{
		SessionID: rec.SessionID,
		Answer:    rec.Answer,
		Blocked:   rec.IsBlocked,
		Category:  rec.Category,
		Outcome:   outcome,
	}
	if rec.IsBlocked {
		out.Reason = rec.Answer
	}
	return out, nil
}
