// Package memory is a process-local transaction store used by the memory
// backend and by tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
)

type Store struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]core.Transaction
}

func New() *Store {
	return &Store{items: make(map[int64]core.Transaction)}
}

// Create stores t under a fresh id.
func (s *Store) Create(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	s.items[t.ID] = t
	return t, nil
}

func (s *Store) Get(_ context.Context, owner string, id int64) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.items[id]
	if !ok || t.Owner != owner {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

func (s *Store) Update(_ context.Context, owner string, id int64, f core.Fields) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	if !ok || t.Owner != owner {
		return core.Transaction{}, core.ErrNotFound
	}
	t = t.Apply(f)
	s.items[id] = t
	return t, nil
}

func (s *Store) Delete(_ context.Context, owner string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	if !ok || t.Owner != owner {
		return core.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// List returns owner's transactions ordered by key, ties broken by id in
// the same direction.
func (s *Store) List(_ context.Context, owner string, key core.SortKey) ([]core.Transaction, error) {
	out := s.owned(owner)
	desc := key.Descending()
	sort.Slice(out, func(i, j int) bool {
		c := compare(out[i], out[j], key.Field())
		if c == 0 {
			c = cmpInt(out[i].ID, out[j].ID)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
	return out, nil
}

// Summarize aggregates in memory using the same rules as the SQL stores.
func (s *Store) Summarize(_ context.Context, f core.Filter) (core.DashboardSummary, error) {
	return core.Summarize(s.owned(f.Owner), f.Month), nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) owned(owner string) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Transaction{}
	for _, t := range s.items {
		if t.Owner == owner {
			out = append(out, t)
		}
	}
	return out
}

func compare(a, b core.Transaction, field string) int {
	switch field {
	case "type":
		return strings.Compare(string(a.Kind), string(b.Kind))
	case "category":
		return strings.Compare(a.Category, b.Category)
	case "amount":
		return a.Amount.Cmp(b.Amount)
	default:
		return a.Date.Compare(b.Date.Time)
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
