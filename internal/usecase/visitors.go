package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"interview-gate/internal/domain"
)

type VisitorWriter interface {
	CreateVisitor(ctx context.Context, v domain.Visitor) error
}

type VisitorService struct {
	store VisitorWriter
	now   func() time.Time
}

type RegisterInput struct {
	VisitorName        string
	VisitorAffiliation string
	VisitRef           string
}

func NewVisitorService(store VisitorWriter) (*VisitorService, error) {
	if store == nil {
		return nil, errors.New("usecase: visitor writer must not be nil")
	}
	return &VisitorService{store: store, now: time.Now}, nil
}

// Register opens a new session for a visitor. The returned visitor's ID is the
// session id used for subsequent questions.
func (s *VisitorService) Register(ctx context.Context, in RegisterInput) (domain.Visitor, error) {
	name := strings.TrimSpace(in.VisitorName)
	if name == "" {
		return domain.Visitor{}, newError(ErrorInvalidInput, "empty_visitor_name", nil)
	}
	v := domain.Visitor{
		ID:                 newUUID(),
		VisitorName:        name,
		VisitorAffiliation: strings.TrimSpace(in.VisitorAffiliation),
		VisitRef:           strings.TrimSpace(in.VisitRef),
		CreatedAt:          s.now().UTC(),
	}
	if err := s.store.CreateVisitor(ctx, v); err != nil {
		return domain.Visitor{}, newError(ErrorInternal, "visitor_write_error", err)
	}
	return v, nil
}

var newUUID = func() string {
	return uuid.NewString()
}
