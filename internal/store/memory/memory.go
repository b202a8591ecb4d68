// Package memory is an in-process Store used by tests and by deployments
// that do not need persistence across restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/tenders/internal/clock"
	"github.com/MrSnakeDoc/tenders/internal/domain"
	"github.com/MrSnakeDoc/tenders/internal/store"
)

// Store keeps tenders and queries in maps behind a single RWMutex.
type Store struct {
	mu    sync.RWMutex
	clock clock.Clock

	tenders    map[int64]*domain.Tender // ID -> Tender
	byExternal map[string]int64         // ExternalID -> ID
	nextTender int64

	queries   map[int64]*domain.SavedQuery // ID -> SavedQuery
	nextQuery int64
}

var _ store.Store = (*Store)(nil)

// New creates an empty store. A nil clock uses the wall clock.
func New(c clock.Clock) *Store {
	if c == nil {
		c = clock.Real()
	}
	return &Store{
		clock:      c,
		tenders:    make(map[int64]*domain.Tender),
		byExternal: make(map[string]int64),
		queries:    make(map[int64]*domain.SavedQuery),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// ─────────────────────────────────────────────────────────────────
// Tenders
// ─────────────────────────────────────────────────────────────────

func (s *Store) BatchInsert(ctx context.Context, tenders []*domain.Tender) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	added := 0
	for _, t := range tenders {
		if _, ok := s.byExternal[t.ExternalID]; ok {
			continue
		}
		s.nextTender++
		t.ID = s.nextTender
		t.SavedAt = now
		t.QueryKeyword = nil

		c := *t
		s.tenders[c.ID] = &c
		s.byExternal[c.ExternalID] = c.ID
		added++
	}
	return added, nil
}

func (s *Store) ExistsByExternalID(_ context.Context, externalID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byExternal[externalID]
	return ok, nil
}

func (s *Store) ListExpired(_ context.Context, cutoff time.Time) ([]*domain.Tender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Tender
	for _, t := range s.tenders {
		if t.Deadline != nil && t.Deadline.Before(cutoff) {
			out = append(out, s.view(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Deadline.Equal(*out[j].Deadline) {
			return out[i].ID < out[j].ID
		}
		return out[i].Deadline.Before(*out[j].Deadline)
	})
	return out, nil
}

func (s *Store) DeleteTenders(ctx context.Context, ids []int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		t, ok := s.tenders[id]
		if !ok {
			continue
		}
		delete(s.byExternal, t.ExternalID)
		delete(s.tenders, id)
		deleted++
	}
	return deleted, nil
}

func (s *Store) GetTender(_ context.Context, id int64) (*domain.Tender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.view(t), nil
}

func (s *Store) ListTenders(_ context.Context, f domain.TenderFilter) (*domain.TenderPage, error) {
	f = f.Normalize()

	s.mu.RLock()
	matched := make([]*domain.Tender, 0)
	for _, t := range s.tenders {
		if store.MatchTender(t, f) {
			matched = append(matched, s.view(t))
		}
	}
	s.mu.RUnlock()

	store.SortTenders(matched, f)

	total := len(matched)
	start := min(f.Offset(), total)
	end := min(start+f.PageSize, total)
	return domain.NewTenderPage(matched[start:end], total, f), nil
}

func (s *Store) CountTenders(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.tenders), nil
}

func (s *Store) Stats(_ context.Context, now time.Time) (*domain.TenderStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.TenderStats{Total: len(s.tenders), LastUpdated: now.UTC()}
	for _, t := range s.tenders {
		if t.Expired(now) {
			stats.Expired++
		}
	}
	stats.Active = stats.Total - stats.Expired
	return stats, nil
}

// view returns a copy of t with the query keyword joined in.
// Callers must hold at least a read lock.
func (s *Store) view(t *domain.Tender) *domain.Tender {
	c := *t
	c.QueryKeyword = nil
	if c.QueryID != nil {
		if q, ok := s.queries[*c.QueryID]; ok {
			kw := q.Keyword
			c.QueryKeyword = &kw
		}
	}
	return &c
}

// ─────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────

func (s *Store) ListQueries(context.Context) ([]*domain.SavedQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.SavedQuery, 0, len(s.queries))
	for _, q := range s.queries {
		c := *q
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ListActiveQueries(context.Context) ([]*domain.SavedQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.SavedQuery, 0, len(s.queries))
	for _, q := range s.queries {
		if q.Active {
			c := *q
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Keyword == out[j].Keyword {
			return out[i].ID < out[j].ID
		}
		return out[i].Keyword < out[j].Keyword
	})
	return out, nil
}

func (s *Store) GetQuery(_ context.Context, id int64) (*domain.SavedQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.queries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *q
	return &c, nil
}

func (s *Store) CreateQuery(_ context.Context, q *domain.SavedQuery) (*domain.SavedQuery, error) {
	if err := domain.ValidateKeyword(q.Keyword); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextQuery++
	c := *q
	c.ID = s.nextQuery
	c.CreatedAt = s.clock.Now().UTC()
	s.queries[c.ID] = &c

	out := c
	return &out, nil
}

func (s *Store) UpdateQuery(_ context.Context, id int64, patch domain.QueryPatch) (*domain.SavedQuery, error) {
	if patch.Keyword != nil {
		if err := domain.ValidateKeyword(*patch.Keyword); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	patch.Apply(q)
	c := *q
	return &c, nil
}

func (s *Store) DeleteQuery(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queries[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.queries, id)
	for _, t := range s.tenders {
		if t.QueryID != nil && *t.QueryID == id {
			t.QueryID = nil
		}
	}
	return nil
}
