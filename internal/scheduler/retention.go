package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/tenders/internal/clock"
	"github.com/MrSnakeDoc/tenders/internal/domain"
	"github.com/MrSnakeDoc/tenders/internal/logger"
	"github.com/MrSnakeDoc/tenders/internal/store"
)

const (
	DefaultRetentionGrace        = 24 * time.Hour
	DefaultRetentionInterval     = 24 * time.Hour
	DefaultRetentionInitialDelay = 30 * time.Second

	// sweepLogLimit caps the tenders listed individually at debug level.
	sweepLogLimit = 10
)

// SweepSink receives a report after every sweep that deleted something.
type SweepSink interface {
	SaveSweepReport(ctx context.Context, r domain.SweepReport) error
}

// RetentionSweeper deletes tenders whose application deadline passed more
// than grace ago.
type RetentionSweeper struct {
	tenders store.TenderStore
	sink    SweepSink
	clock   clock.Clock
	logger  logger.Logger
	grace   time.Duration
}

// NewRetentionSweeper creates a sweeper. sink may be nil; a non-positive
// grace uses DefaultRetentionGrace.
func NewRetentionSweeper(
	tenders store.TenderStore,
	sink SweepSink,
	c clock.Clock,
	log logger.Logger,
	grace time.Duration,
) *RetentionSweeper {
	if grace <= 0 {
		grace = DefaultRetentionGrace
	}
	if c == nil {
		c = clock.Real()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RetentionSweeper{
		tenders: tenders,
		sink:    sink,
		clock:   c,
		logger:  log,
		grace:   grace,
	}
}

// Job adapts Sweep to a Loop.
func (r *RetentionSweeper) Job() Job {
	return func(ctx context.Context) error {
		_, err := r.Sweep(ctx)
		return err
	}
}

// Sweep deletes every tender with a deadline strictly before now - grace,
// in a single delete.
func (r *RetentionSweeper) Sweep(ctx context.Context) (domain.SweepReport, error) {
	now := r.clock.Now().UTC()
	report := domain.SweepReport{StartedAt: now, Cutoff: now.Add(-r.grace)}

	r.logger.Info("running retention sweep", logger.Time("cutoff", report.Cutoff))

	expired, err := r.tenders.ListExpired(ctx, report.Cutoff)
	if err != nil {
		return report, fmt.Errorf("list expired tenders: %w", err)
	}
	if len(expired) == 0 {
		r.logger.Info("no expired tenders to delete")
		report.FinishedAt = r.clock.Now().UTC()
		return report, nil
	}

	ids := make([]int64, 0, len(expired))
	for _, t := range expired {
		ids = append(ids, t.ID)
	}

	deleted, err := r.tenders.DeleteTenders(ctx, ids)
	if err != nil {
		return report, fmt.Errorf("delete expired tenders: %w", err)
	}
	report.Deleted = deleted
	report.FinishedAt = r.clock.Now().UTC()

	r.logger.Info("retention sweep completed",
		logger.Int("deleted", deleted),
		logger.Time("cutoff", report.Cutoff))
	r.logDeleted(expired)

	if r.sink != nil {
		if err := r.sink.SaveSweepReport(ctx, report); err != nil {
			r.logger.Warn("failed to save sweep report", logger.Error(err))
		}
	}
	return report, nil
}

func (r *RetentionSweeper) logDeleted(expired []*domain.Tender) {
	for i, t := range expired {
		if i == sweepLogLimit {
			r.logger.Debugf("... and %d more", len(expired)-sweepLogLimit)
			return
		}
		r.logger.Debug("deleted expired tender",
			logger.String("purchase_number", t.PurchaseNumber),
			logger.Time("deadline", *t.Deadline))
	}
}
