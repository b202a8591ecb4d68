package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/tenders/internal/clock"
	"github.com/MrSnakeDoc/tenders/internal/domain"
	"github.com/MrSnakeDoc/tenders/internal/logger"
	"github.com/MrSnakeDoc/tenders/internal/sources/gosplan"
	"github.com/MrSnakeDoc/tenders/internal/store"
)

const (
	DefaultSearchInterval     = 30 * time.Minute
	DefaultSearchInitialDelay = 10 * time.Second
	DefaultQueryPacing        = time.Second
)

// Searcher is the upstream call the scheduler depends on.
type Searcher interface {
	Search(ctx context.Context, keyword string, queryID *int64, opts gosplan.SearchOptions) ([]*domain.Tender, error)
}

// CycleSink receives a report after every search cycle.
type CycleSink interface {
	SaveCycleReport(ctx context.Context, r domain.CycleReport) error
}

// SearchConfig tunes a SearchScheduler. Zero values use defaults.
type SearchConfig struct {
	QueryLimit int
	Pacing     time.Duration
}

// SearchScheduler polls upstream for every active saved query and stores
// what it finds.
type SearchScheduler struct {
	catalog store.QueryCatalog
	tenders store.TenderStore
	client  Searcher
	sink    CycleSink
	clock   clock.Clock
	logger  logger.Logger

	limit  int
	pacing time.Duration
}

// NewSearchScheduler wires a scheduler. sink may be nil.
func NewSearchScheduler(
	catalog store.QueryCatalog,
	tenders store.TenderStore,
	client Searcher,
	sink CycleSink,
	c clock.Clock,
	log logger.Logger,
	cfg SearchConfig,
) *SearchScheduler {
	if cfg.QueryLimit <= 0 {
		cfg.QueryLimit = gosplan.DefaultLimit
	}
	if cfg.Pacing <= 0 {
		cfg.Pacing = DefaultQueryPacing
	}
	if c == nil {
		c = clock.Real()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &SearchScheduler{
		catalog: catalog,
		tenders: tenders,
		client:  client,
		sink:    sink,
		clock:   c,
		logger:  log,
		limit:   cfg.QueryLimit,
		pacing:  cfg.Pacing,
	}
}

// Job adapts RunCycle to a Loop.
func (s *SearchScheduler) Job() Job {
	return func(ctx context.Context) error {
		_, err := s.RunCycle(ctx)
		return err
	}
}

// RunCycle searches every active query in catalog order. A failing query
// is logged, counted and skipped. The returned error is only set when the
// cycle could not start or was cancelled.
func (s *SearchScheduler) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	report := domain.CycleReport{StartedAt: s.clock.Now().UTC()}

	queries, err := s.catalog.ListActiveQueries(ctx)
	if err != nil {
		return report, fmt.Errorf("list active queries: %w", err)
	}
	if len(queries) == 0 {
		s.logger.Info("no active queries, skipping search cycle")
		report.FinishedAt = s.clock.Now().UTC()
		return report, nil
	}

	s.logger.Info("search cycle started", logger.Int("queries", len(queries)))

	for i, q := range queries {
		if i > 0 {
			if err := clock.Sleep(ctx, s.clock, s.pacing); err != nil {
				report.FinishedAt = s.clock.Now().UTC()
				return report, err
			}
		}

		report.Queries++
		found, added, err := s.runQuery(ctx, q)
		report.Found += found
		report.Added += added
		if err != nil {
			report.Failed++
			s.logger.Error("query failed",
				logger.Int64("query_id", q.ID),
				logger.String("keyword", q.Keyword),
				logger.Error(err))
			if ctx.Err() != nil {
				report.FinishedAt = s.clock.Now().UTC()
				return report, ctx.Err()
			}
			continue
		}
		s.logger.Info("query processed",
			logger.Int64("query_id", q.ID),
			logger.String("keyword", q.Keyword),
			logger.Int("found", found),
			logger.Int("added", added))
	}

	report.FinishedAt = s.clock.Now().UTC()
	s.logger.Info("search cycle finished",
		logger.Int("queries", report.Queries),
		logger.Int("found", report.Found),
		logger.Int("added", report.Added),
		logger.Int("failed", report.Failed),
		logger.Duration("took", report.FinishedAt.Sub(report.StartedAt)))

	if s.sink != nil {
		if err := s.sink.SaveCycleReport(ctx, report); err != nil {
			s.logger.Warn("failed to save cycle report", logger.Error(err))
		}
	}
	return report, nil
}

func (s *SearchScheduler) runQuery(ctx context.Context, q *domain.SavedQuery) (found, added int, err error) {
	id := q.ID
	tenders, err := s.client.Search(ctx, q.Keyword, &id, gosplan.SearchOptions{Limit: s.limit})
	if err != nil {
		return 0, 0, err
	}
	for _, t := range tenders {
		t.QueryID = &id
	}

	added, err = s.tenders.BatchInsert(ctx, tenders)
	if err != nil {
		return len(tenders), 0, err
	}
	return len(tenders), added, nil
}
