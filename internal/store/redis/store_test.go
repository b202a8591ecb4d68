package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/tenders/internal/domain"
)

// Tests run against a real server and flush the selected database.
func testStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("TENDERS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TENDERS_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("FlushDB() error = %v", err)
	}
	return NewStore(client, time.Minute)
}

func TestStatsCache(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	got, err := s.CachedStats(ctx)
	if err != nil || got != nil {
		t.Fatalf("CachedStats() on empty = %v, %v, want miss", got, err)
	}

	want := &domain.TenderStats{Total: 5, Active: 3, Expired: 2, LastUpdated: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	if err := s.CacheStats(ctx, want); err != nil {
		t.Fatalf("CacheStats() error = %v", err)
	}
	got, err = s.CachedStats(ctx)
	if err != nil {
		t.Fatalf("CachedStats() error = %v", err)
	}
	if got == nil || got.Total != 5 || !got.LastUpdated.Equal(want.LastUpdated) {
		t.Errorf("CachedStats() = %+v, want %+v", got, want)
	}

	// a cycle that added tenders invalidates the cache
	if err := s.SaveCycleReport(ctx, domain.CycleReport{Added: 1}); err != nil {
		t.Fatalf("SaveCycleReport() error = %v", err)
	}
	if got, _ := s.CachedStats(ctx); got != nil {
		t.Errorf("CachedStats() after ingestion = %+v, want miss", got)
	}
}

func TestReports(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if r, err := s.LastSweepReport(ctx); err != nil || r != nil {
		t.Fatalf("LastSweepReport() on empty = %v, %v", r, err)
	}

	cycle := domain.CycleReport{Queries: 2, Found: 3, Added: 2, Failed: 1}
	if err := s.SaveCycleReport(ctx, cycle); err != nil {
		t.Fatalf("SaveCycleReport() error = %v", err)
	}
	sweep := domain.SweepReport{Deleted: 4}
	if err := s.SaveSweepReport(ctx, sweep); err != nil {
		t.Fatalf("SaveSweepReport() error = %v", err)
	}

	gotCycle, err := s.LastCycleReport(ctx)
	if err != nil || gotCycle == nil || gotCycle.Added != 2 || gotCycle.Found != 3 || gotCycle.Failed != 1 {
		t.Errorf("LastCycleReport() = %+v, %v, want %+v", gotCycle, err, cycle)
	}
	gotSweep, err := s.LastSweepReport(ctx)
	if err != nil || gotSweep == nil || gotSweep.Deleted != 4 {
		t.Errorf("LastSweepReport() = %+v, %v", gotSweep, err)
	}
}
