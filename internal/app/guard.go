package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"contest-grading-service/internal/domain"
)

// GuardConfig configures StorageGuard.
type GuardConfig struct {
	MaxConsecutiveFailures int
	CoolDown               time.Duration
}

// StorageGuard stops calling storage for CoolDown once it has failed
// MaxConsecutiveFailures times in a row. A zero threshold never trips.
type StorageGuard struct {
	cfg GuardConfig
	now func() time.Time

	mu        sync.Mutex
	failures  int
	openUntil time.Time
}

func NewStorageGuard(cfg GuardConfig) *StorageGuard {
	return NewStorageGuardWithClock(cfg, time.Now)
}

// NewStorageGuardWithClock allows deterministic cool-downs in tests.
func NewStorageGuardWithClock(cfg GuardConfig, now func() time.Time) *StorageGuard {
	return &StorageGuard{cfg: cfg, now: now}
}

// Do runs fn unless the guard is cooling down. Only errors wrapping
// domain.ErrStorageUnavailable count as failures.
func (g *StorageGuard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	if until := g.openUntil; g.now().Before(until) {
		g.mu.Unlock()
		return fmt.Errorf("%w: cooling down until %s", domain.ErrStorageUnavailable, until.Format(time.RFC3339))
	}
	g.mu.Unlock()

	err := fn(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if errors.Is(err, domain.ErrStorageUnavailable) {
		g.failures++
		if g.cfg.MaxConsecutiveFailures > 0 && g.failures >= g.cfg.MaxConsecutiveFailures {
			g.openUntil = g.now().Add(g.cfg.CoolDown)
		}
		return err
	}
	g.failures = 0
	return err
}

// guarded runs a value-returning storage call through the guard.
func guarded[T any](ctx context.Context, g *StorageGuard, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}
