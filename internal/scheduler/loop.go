package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MrSnakeDoc/tenders/internal/clock"
	"github.com/MrSnakeDoc/tenders/internal/logger"
)

// State is the lifecycle position of a Loop.
type State int32

const (
	StateIdle State = iota
	StateInitialDelay
	StateRunning
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitialDelay:
		return "initial_delay"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Job is one run of a background loop. A returned error is logged and the
// loop carries on.
type Job func(ctx context.Context) error

// LoopOptions configures a Loop.
type LoopOptions struct {
	Name         string
	Schedule     cron.Schedule
	InitialDelay time.Duration
	Clock        clock.Clock
	Logger       logger.Logger
}

// Loop runs a Job after an initial delay and then at every tick of its
// schedule until its context is cancelled. Trigger wakes it early.
type Loop struct {
	name         string
	job          Job
	schedule     cron.Schedule
	initialDelay time.Duration
	clock        clock.Clock
	logger       logger.Logger

	trigger chan struct{}
	state   atomic.Int32
	runs    atomic.Int64
	lastRun atomic.Int64 // unix nanos of the last completed run
}

// NewLoop builds a loop. Schedule must be set; every other option has a
// default.
func NewLoop(opts LoopOptions, job Job) *Loop {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Loop{
		name:         opts.Name,
		job:          job,
		schedule:     opts.Schedule,
		initialDelay: opts.InitialDelay,
		clock:        opts.Clock,
		logger:       opts.Logger,
		trigger:      make(chan struct{}, 1),
	}
}

func (l *Loop) Name() string { return l.name }

// State returns the current lifecycle state.
func (l *Loop) State() State { return State(l.state.Load()) }

// Runs returns how many times the job has completed.
func (l *Loop) Runs() int64 { return l.runs.Load() }

// LastRun returns when the job last completed, zero if never.
func (l *Loop) LastRun() time.Time {
	n := l.lastRun.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// Trigger asks the loop to run now. It returns false when a trigger is
// already pending.
func (l *Loop) Trigger() bool {
	select {
	case l.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer l.setState(StateStopped)

	l.setState(StateInitialDelay)
	l.logger.Info("loop starting",
		logger.String("loop", l.name),
		logger.Duration("initial_delay", l.initialDelay))
	if !l.wait(ctx, l.initialDelay) {
		l.logger.Info("loop stopped", logger.String("loop", l.name))
		return
	}

	for {
		if ctx.Err() != nil {
			break
		}

		l.setState(StateRunning)
		l.runOnce(ctx)

		now := l.clock.Now()
		next := l.schedule.Next(now)
		l.setState(StateSleeping)
		l.logger.Debug("loop sleeping",
			logger.String("loop", l.name),
			logger.Time("next_run", next))
		if !l.wait(ctx, next.Sub(now)) {
			break
		}
	}
	l.logger.Info("loop stopped", logger.String("loop", l.name))
}

// runOnce executes the job, turning a panic into a logged error.
func (l *Loop) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop job panicked",
				logger.String("loop", l.name),
				logger.String("panic", fmt.Sprint(r)),
				logger.String("stack", string(debug.Stack())))
		}
		l.runs.Add(1)
		l.lastRun.Store(l.clock.Now().UnixNano())
	}()

	start := l.clock.Now()
	if err := l.job(ctx); err != nil {
		l.logger.Error("loop job failed",
			logger.String("loop", l.name),
			logger.Error(err))
		return
	}
	l.logger.Debug("loop job finished",
		logger.String("loop", l.name),
		logger.Duration("took", l.clock.Now().Sub(start)))
}

// wait returns false when ctx was cancelled before d elapsed or a
// trigger arrived.
func (l *Loop) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-l.trigger:
		l.logger.Info("manual run triggered", logger.String("loop", l.name))
	case <-l.clock.After(d):
	}
	return ctx.Err() == nil
}

func (l *Loop) setState(s State) { l.state.Store(int32(s)) }

// ParseSchedule accepts a standard five field cron expression or a
// descriptor such as "@every 30m" or "@daily".
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Every is a fixed-interval schedule.
func Every(d time.Duration) cron.Schedule {
	return cron.Every(d)
}
