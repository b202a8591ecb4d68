// Package redis keeps short-lived derived state: a stats cache for the read
// API and the last report of each background loop.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/tenders/internal/domain"
)

const (
	// DefaultStatsTTL bounds how stale /stats can be between ingestions.
	DefaultStatsTTL = time.Minute
	// DefaultReportTTL keeps reports for a few missed cycles.
	DefaultReportTTL = 72 * time.Hour
)

// Store handles Redis operations for cached stats and loop reports.
type Store struct {
	client   redis.Cmdable
	statsTTL time.Duration
}

// NewStore creates a new Redis store. A non-positive ttl uses DefaultStatsTTL.
func NewStore(client redis.Cmdable, statsTTL time.Duration) *Store {
	if statsTTL <= 0 {
		statsTTL = DefaultStatsTTL
	}
	return &Store{client: client, statsTTL: statsTTL}
}

// CacheStats stores stats until the TTL expires or InvalidateStats is called.
func (s *Store) CacheStats(ctx context.Context, stats *domain.TenderStats) error {
	return s.setJSON(ctx, KeyStats, stats, s.statsTTL)
}

// CachedStats returns the cached stats, or nil on a miss.
func (s *Store) CachedStats(ctx context.Context) (*domain.TenderStats, error) {
	var stats domain.TenderStats
	ok, err := s.getJSON(ctx, KeyStats, &stats)
	if err != nil || !ok {
		return nil, err
	}
	return &stats, nil
}

// InvalidateStats drops the cached stats.
func (s *Store) InvalidateStats(ctx context.Context) error {
	if err := s.client.Del(ctx, KeyStats).Err(); err != nil {
		return fmt.Errorf("failed to invalidate stats: %w", err)
	}
	return nil
}

// SaveCycleReport records the latest search cycle and invalidates stats
// when it stored anything.
func (s *Store) SaveCycleReport(ctx context.Context, r domain.CycleReport) error {
	if err := s.setJSON(ctx, KeyLastCycle, r, DefaultReportTTL); err != nil {
		return err
	}
	if r.Added > 0 {
		return s.InvalidateStats(ctx)
	}
	return nil
}

// LastCycleReport returns the latest search cycle, or nil if none is stored.
func (s *Store) LastCycleReport(ctx context.Context) (*domain.CycleReport, error) {
	var r domain.CycleReport
	ok, err := s.getJSON(ctx, KeyLastCycle, &r)
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

// SaveSweepReport records the latest retention sweep and invalidates stats
// when it deleted anything.
func (s *Store) SaveSweepReport(ctx context.Context, r domain.SweepReport) error {
	if err := s.setJSON(ctx, KeyLastSweep, r, DefaultReportTTL); err != nil {
		return err
	}
	if r.Deleted > 0 {
		return s.InvalidateStats(ctx)
	}
	return nil
}

// LastSweepReport returns the latest sweep, or nil if none is stored.
func (s *Store) LastSweepReport(ctx context.Context) (*domain.SweepReport, error) {
	var r domain.SweepReport
	ok, err := s.getJSON(ctx, KeyLastSweep, &r)
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// getJSON reports false on a cache miss.
func (s *Store) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}
