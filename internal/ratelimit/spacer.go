// Package ratelimit enforces a minimum spacing between outbound upstream
// requests, shared by every caller in the process.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/tenders/internal/clock"
	"github.com/MrSnakeDoc/tenders/internal/logger"
)

// DefaultSpacing is the upstream API's one request per second budget.
const DefaultSpacing = time.Second

// Spacer serializes requests through a single permit. Each acquisition
// waits until at least spacing has elapsed since the previous holder
// released the permit.
type Spacer struct {
	permit  chan struct{}
	spacing time.Duration
	clock   clock.Clock
	logger  logger.Logger

	mu   sync.Mutex
	last time.Time // end of the previous request, zero before the first
}

// NewSpacer creates a spacer. A non-positive spacing uses DefaultSpacing.
func NewSpacer(spacing time.Duration, c clock.Clock, log logger.Logger) *Spacer {
	if spacing <= 0 {
		spacing = DefaultSpacing
	}
	if c == nil {
		c = clock.Real()
	}
	if log == nil {
		log = logger.NewNop()
	}
	s := &Spacer{
		permit:  make(chan struct{}, 1),
		spacing: spacing,
		clock:   c,
		logger:  log,
	}
	s.permit <- struct{}{}
	return s
}

// Spacing returns the configured minimum gap.
func (s *Spacer) Spacing() time.Duration { return s.spacing }

// Acquire blocks until the caller may issue a request. The returned
// release func must be called once the request has finished; it records
// the end-of-request time that the next acquisition is measured from.
func (s *Spacer) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case <-s.permit:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	if !last.IsZero() {
		wait := s.spacing - s.clock.Now().Sub(last)
		if wait > 0 {
			s.logger.Debug("rate limiting upstream request",
				logger.Duration("wait", wait))
			if err := clock.Sleep(ctx, s.clock, wait); err != nil {
				s.permit <- struct{}{}
				return nil, err
			}
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.last = s.clock.Now()
			s.mu.Unlock()
			s.permit <- struct{}{}
		})
	}, nil
}
