package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrSnakeDoc/tenders/internal/logger"
	"github.com/MrSnakeDoc/tenders/internal/sources/seed"
	"github.com/MrSnakeDoc/tenders/internal/store"
)

// SeedSyncer creates saved queries listed in the seed file that the
// catalog does not know yet. Existing queries are never modified, so edits
// made through the API survive a reload.
type SeedSyncer struct {
	loader  *seed.Loader
	catalog store.QueryCatalog
	logger  logger.Logger

	mu sync.Mutex
}

func NewSeedSyncer(seedFile string, catalog store.QueryCatalog, log logger.Logger) *SeedSyncer {
	if log == nil {
		log = logger.NewNop()
	}
	return &SeedSyncer{
		loader:  seed.NewLoader(seedFile),
		catalog: catalog,
		logger:  log,
	}
}

// Sync loads the seed file and creates the missing queries. It returns how
// many were created.
func (s *SeedSyncer) Sync(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("syncing saved queries from seed file",
		logger.String("path", s.loader.Path()))

	file, err := s.loader.Load()
	if err != nil {
		return 0, fmt.Errorf("failed to load seed file: %w", err)
	}
	seeded := seed.Map(file)

	existing, err := s.catalog.ListQueries(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list saved queries: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, q := range existing {
		known[seed.NormalizeKeyword(q.Keyword)] = true
	}

	created := 0
	for _, q := range seeded {
		if known[seed.NormalizeKeyword(q.Keyword)] {
			continue
		}
		if _, err := s.catalog.CreateQuery(ctx, q); err != nil {
			return created, fmt.Errorf("failed to create saved query %q: %w", q.Keyword, err)
		}
		created++
	}

	s.logger.Info("seed sync completed",
		logger.Int("seeded", len(seeded)),
		logger.Int("created", created))

	return created, nil
}

// Watch syncs whenever the seed file changes, until ctx is cancelled.
// Failed reloads are logged and the previous catalog is kept.
func (s *SeedSyncer) Watch(ctx context.Context) (*seed.Watcher, error) {
	w := seed.NewWatcher(s.loader.Path(), func() {
		if _, err := s.Sync(ctx); err != nil {
			s.logger.Error("failed to reload seed file", logger.Error(err))
		}
	}, s.logger)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}
