package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrSnakeDoc/tenders/internal/clock"
)

var testEpoch = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestLoopInitialDelayThenSchedule(t *testing.T) {
	fc := clock.NewFake(testEpoch)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var loop *Loop
	var statesInJob []State
	loop = NewLoop(LoopOptions{
		Name:         "search",
		Schedule:     Every(30 * time.Minute),
		InitialDelay: 10 * time.Second,
		Clock:        fc,
	}, func(ctx context.Context) error {
		statesInJob = append(statesInJob, loop.State())
		if len(statesInJob) == 3 {
			cancel()
		}
		return nil
	})

	if loop.State() != StateIdle {
		t.Errorf("State() before Run = %v, want idle", loop.State())
	}

	loop.Run(ctx)

	if loop.Runs() != 3 {
		t.Errorf("Runs() = %d, want 3", loop.Runs())
	}
	if loop.State() != StateStopped {
		t.Errorf("State() after Run = %v, want stopped", loop.State())
	}
	for i, s := range statesInJob {
		if s != StateRunning {
			t.Errorf("state during run %d = %v, want running", i, s)
		}
	}

	want := []time.Duration{10 * time.Second, 30 * time.Minute, 30 * time.Minute}
	sleeps := fc.Sleeps()
	if len(sleeps) < len(want) {
		t.Fatalf("sleeps = %v, want prefix %v", sleeps, want)
	}
	for i, d := range want {
		if sleeps[i] != d {
			t.Errorf("sleep %d = %v, want %v", i, sleeps[i], d)
		}
	}

	wantLast := testEpoch.Add(10*time.Second + 60*time.Minute)
	if !loop.LastRun().Equal(wantLast) {
		t.Errorf("LastRun() = %v, want %v", loop.LastRun(), wantLast)
	}
}

func TestLoopSurvivesErrorsAndPanics(t *testing.T) {
	fc := clock.NewFake(testEpoch)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	loop := NewLoop(LoopOptions{Name: "sweep", Schedule: Every(time.Hour), Clock: fc},
		func(ctx context.Context) error {
			calls++
			switch calls {
			case 1:
				return errors.New("store unavailable")
			case 2:
				panic("unexpected nil")
			default:
				cancel()
				return nil
			}
		})

	loop.Run(ctx)

	if calls != 3 {
		t.Errorf("job ran %d times, want 3", calls)
	}
	if loop.Runs() != 3 {
		t.Errorf("Runs() = %d, want 3", loop.Runs())
	}
}

func TestLoopCancelDuringInitialDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	ran := false
	loop := NewLoop(LoopOptions{Name: "search", Schedule: Every(time.Hour), InitialDelay: time.Hour},
		func(ctx context.Context) error {
			ran = true
			return nil
		})

	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
	if ran {
		t.Error("job ran although the loop was cancelled during the initial delay")
	}
	if loop.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", loop.State())
	}
}

func TestLoopCancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{}, 1)
	loop := NewLoop(LoopOptions{Name: "search", Schedule: Every(time.Hour)},
		func(ctx context.Context) error {
			started <- struct{}{}
			return nil
		})

	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	<-started
	deadline := time.Now().Add(2 * time.Second)
	for loop.State() != StateSleeping {
		if time.Now().After(deadline) {
			t.Fatalf("State() = %v, never reached sleeping", loop.State())
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}

func TestLoopTrigger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ran := make(chan struct{})
	loop := NewLoop(LoopOptions{Name: "search", Schedule: Every(time.Hour), InitialDelay: time.Hour},
		func(ctx context.Context) error {
			close(ran)
			cancel()
			return nil
		})

	if !loop.Trigger() {
		t.Fatal("Trigger() = false on an idle loop")
	}
	if loop.Trigger() {
		t.Error("Trigger() = true while a trigger is pending")
	}

	go loop.Run(ctx)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("triggered run did not happen")
	}
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
		next    time.Duration
	}{
		{"@every 30m", false, 30 * time.Minute},
		{"@every 24h", false, 24 * time.Hour},
		{"CRON_TZ=UTC @hourly", false, time.Hour},
		{"CRON_TZ=UTC 0 * * * *", false, time.Hour},
		{"every half hour", true, 0},
		{"", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			s, err := ParseSchedule(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSchedule(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := s.Next(testEpoch).Sub(testEpoch); got != tt.next {
				t.Errorf("Next() - now = %v, want %v", got, tt.next)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateIdle:         "idle",
		StateInitialDelay: "initial_delay",
		StateRunning:      "running",
		StateSleeping:     "sleeping",
		StateStopped:      "stopped",
		State(42):         "state(42)",
	} {
		if got := s.String(); got != want {
			t.Errorf("%s: String() = %q, want %q", fmt.Sprint(int32(s)), got, want)
		}
	}
}
