package usecase

import (
	"context"
	"errors"

	"interview-gate/internal/domain"
)

const (
	DefaultLogsLimit = 50
	MaxLogsLimit     = 200
)

type StatsComputer interface {
	ComputeStats(ctx context.Context, maxRecords int) (domain.DashboardStats, error)
}

type ConversationReader interface {
	RecentConversations(ctx context.Context, limit int) ([]domain.ConversationRecord, error)
}

// DashboardService serves the read-only admin views.
type DashboardService struct {
	stats         StatsComputer
	conversations ConversationReader
}

func NewDashboardService(stats StatsComputer, conversations ConversationReader) (*DashboardService, error) {
	if stats == nil {
		return nil, errors.New("usecase: stats computer must not be nil")
	}
	if conversations == nil {
		return nil, errors.New("usecase: conversation reader must not be nil")
	}
	return &DashboardService{stats: stats, conversations: conversations}, nil
}

func (s *DashboardService) Stats(ctx context.Context) (domain.DashboardStats, error) {
	stats, err := s.stats.ComputeStats(ctx, 0)
	if err != nil {
		return domain.DashboardStats{}, newError(ErrorInternal, "stats_read_error", err)
	}
	return stats, nil
}

// Logs returns the newest conversation records. limit 0 means the default;
// anything outside 1..MaxLogsLimit is rejected.
func (s *DashboardService) Logs(ctx context.Context, limit int) ([]domain.ConversationRecord, error) {
	if limit == 0 {
		limit = DefaultLogsLimit
	}
	if limit < 1 || limit > MaxLogsLimit {
		return nil, newError(ErrorInvalidInput, "limit_out_of_range", nil)
	}
	records, err := s.conversations.RecentConversations(ctx, limit)
	if err != nil {
		return nil, newError(ErrorInternal, "logs_read_error", err)
	}
	if records == nil {
		records = []domain.ConversationRecord{}
	}
	return records, nil
}
