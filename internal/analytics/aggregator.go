// Package analytics derives dashboard statistics from the most recent
// visitor and conversation records.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"interview-gate/internal/domain"
)

const (
	DefaultLimit = 200

	directRef       = "direct"
	unknownDay      = "unknown"
	generalCategory = "general"
	dayLayout       = "2006-01-02"
)

type VisitorReader interface {
	RecentVisitors(ctx context.Context, limit int) ([]domain.Visitor, error)
}

type ConversationReader interface {
	RecentConversations(ctx context.Context, limit int) ([]domain.ConversationRecord, error)
}

// Aggregator reads bounded record windows and reduces them with Compute. It
// never writes.
type Aggregator struct {
	visitors      VisitorReader
	conversations ConversationReader
	limit         int
}

func NewAggregator(v VisitorReader, c ConversationReader, defaultLimit int) (*Aggregator, error) {
	if v == nil {
		return nil, errors.New("analytics: visitor reader must not be nil")
	}
	if c == nil {
		return nil, errors.New("analytics: conversation reader must not be nil")
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return &Aggregator{visitors: v, conversations: c, limit: defaultLimit}, nil
}

// ComputeStats reads up to maxRecords of each record kind, newest first, and
// computes the dashboard projection. maxRecords <= 0 uses the default limit.
func (a *Aggregator) ComputeStats(ctx context.Context, maxRecords int) (domain.DashboardStats, error) {
	if maxRecords <= 0 {
		maxRecords = a.limit
	}

	var (
		visitors      []domain.Visitor
		conversations []domain.ConversationRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		visitors, err = a.visitors.RecentVisitors(gctx, maxRecords)
		if err != nil {
			return fmt.Errorf("analytics: read visitors: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		conversations, err = a.conversations.RecentConversations(gctx, maxRecords)
		if err != nil {
			return fmt.Errorf("analytics: read conversations: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.DashboardStats{}, err
	}
	return Compute(visitors, conversations), nil
}

// Compute is the pure reduction behind ComputeStats. Counts are exact. Ref and
// category stats are ordered by count descending with ties kept in first-seen
// order; daily visits are ordered by day with "unknown" last.
func Compute(visitors []domain.Visitor, conversations []domain.ConversationRecord) domain.DashboardStats {
	refs := newCounter()
	days := newCounter()
	for _, v := range visitors {
		ref := strings.TrimSpace(v.VisitRef)
		if ref == "" {
			ref = directRef
		}
		refs.add(ref)
		days.add(dayLabel(v))
	}

	categories := newCounter()
	for _, c := range conversations {
		if c.IsBlocked {
			continue
		}
		category := strings.TrimSpace(c.Category)
		if category == "" {
			category = generalCategory
		}
		categories.add(category)
	}

	if visitors == nil {
		visitors = []domain.Visitor{}
	}
	if conversations == nil {
		conversations = []domain.ConversationRecord{}
	}
	return domain.DashboardStats{
		RefStats:           refs.byCount(),
		QuestionCategories: categories.byCount(),
		DailyVisits:        days.byDay(),
		LatestVisitors:     visitors,
		RecentQuestions:    conversations,
	}
}

func dayLabel(v domain.Visitor) string {
	if v.CreatedAt.IsZero() {
		return unknownDay
	}
	return v.CreatedAt.UTC().Format(dayLayout)
}

// counter counts labels and remembers first-seen order.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(label string) {
	if _, ok := c.counts[label]; !ok {
		c.order = append(c.order, label)
	}
	c.counts[label]++
}

func (c *counter) points() []domain.StatPoint {
	out := make([]domain.StatPoint, 0, len(c.order))
	for _, label := range c.order {
		out = append(out, domain.StatPoint{Label: label, Value: c.counts[label]})
	}
	return out
}

func (c *counter) byCount() []domain.StatPoint {
	out := c.points()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value > out[j].Value
	})
	return out
}

func (c *counter) byDay() []domain.StatPoint {
	out := c.points()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Label, out[j].Label
		if a == unknownDay || b == unknownDay {
			return b == unknownDay && a != unknownDay
		}
		return a < b
	})
	return out
}
