package services

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// SummaryStore computes dashboard aggregates for one owner.
type SummaryStore interface {
	Summarize(ctx context.Context, f core.Filter) (core.DashboardSummary, error)
}

// DashboardService builds dashboard summaries, optionally memoised per
// owner and month.
type DashboardService struct {
	store  SummaryStore
	cache  cache.Cache[core.DashboardSummary]
	logger *log.Logger

	// generations counts invalidations per owner. A summary read from the
	// store is cached only if no invalidation happened during the read.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewDashboardService wires the service. A nil cache disables memoisation.
func NewDashboardService(store SummaryStore, c cache.Cache[core.DashboardSummary], logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.Discard()
	}
	return &DashboardService{
		store:       store,
		cache:       c,
		logger:      logger.WithComponent(log.ComponentDashboard),
		generations: make(map[string]uint64),
	}
}

// Summarize aggregates owner's transactions. An empty or malformed month
// means the whole history; it is never an error.
func (s *DashboardService) Summarize(ctx context.Context, owner, month string) (core.DashboardSummary, error) {
	if err := checkOwner(owner); err != nil {
		return core.DashboardSummary{}, err
	}

	f := core.Filter{Owner: owner}
	if m, ok := core.ParseMonth(month); ok {
		f.Month = &m
	} else if month != "" {
		s.logger.DebugContext(ctx, "Ignoring malformed month filter", log.FieldMonth, month)
	}

	key := summaryKey(f)
	var gen uint64
	if s.cache != nil {
		if sum, ok := s.cache.Get(key); ok {
			return sum, nil
		}
		gen = s.generation(owner)
	}

	sum, err := s.store.Summarize(ctx, f)
	if err != nil {
		return core.DashboardSummary{}, fmt.Errorf("summarize: %w", err)
	}
	if s.cache != nil {
		s.fill(owner, gen, key, sum)
	}
	return sum, nil
}

func (s *DashboardService) generation(owner string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[owner]
}

// fill caches sum unless owner was invalidated after gen was taken.
func (s *DashboardService) fill(owner string, gen uint64, key string, sum core.DashboardSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[owner] != gen {
		s.logger.Debug("Skipping stale dashboard cache fill", log.FieldOwner, owner)
		return
	}
	s.cache.Set(key, sum)
}

// InvalidateOwner drops every cached summary of owner.
func (s *DashboardService) InvalidateOwner(owner string) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	s.generations[owner]++
	n := s.cache.DeletePrefix(ownerPrefix(owner))
	s.mu.Unlock()
	if n > 0 {
		s.logger.Debug("Dashboard cache invalidated", log.FieldOwner, owner, "entries", n)
	}
}

// HandleChange invalidates the owner named by a change event published by
// any instance.
func (s *DashboardService) HandleChange(_ context.Context, msg amqp.ChangeMessage) error {
	s.InvalidateOwner(msg.Owner)
	return nil
}

// ownerPrefix ends in a separator that cannot appear in a month, so one
// owner's prefix never matches another owner's keys.
func ownerPrefix(owner string) string {
	return fmt.Sprintf("%d:%s|", len(owner), owner)
}

func summaryKey(f core.Filter) string {
	key := ownerPrefix(f.Owner)
	if f.Month != nil {
		key += f.Month.String()
	}
	return key
}
