// Package quota provides a Redis-backed guard shared by every export-server
// instance talking to the same Ad Manager network: a cap on concurrent
// imports per network and an upstream fault budget that blocks new requests
// once too many faults land in a window.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota gating.
var (
	quotaSlotRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gam_quota_slot_rejections_total",
		Help: "Total imports rejected because the network was at its concurrent-import cap",
	})

	quotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gam_quota_blocks_total",
		Help: "Total requests blocked because the fault budget was exhausted",
	})

	quotaFaultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gam_quota_faults_total",
		Help: "Total upstream faults recorded against the budget",
	})
)

// ErrNoImportSlot is returned when the network is at its concurrent-import cap.
var ErrNoImportSlot = errors.New("concurrent import limit reached")

// Config holds the guard configuration.
type Config struct {
	// MaxConcurrentImports caps simultaneous import sessions per network.
	MaxConcurrentImports int

	// FaultBudget is the number of upstream faults tolerated per window
	// before new requests are blocked.
	FaultBudget int

	// FaultWindow is the rolling window for the fault budget.
	FaultWindow time.Duration

	// SlotTTL bounds how long a slot survives a crashed holder.
	SlotTTL time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentImports: 5,
		FaultBudget:          20,
		FaultWindow:          60 * time.Second,
		SlotTTL:              30 * time.Minute,
	}
}

// Guard gates import sessions and requests against shared Redis state.
type Guard struct {
	redis  *redis.Client
	config Config
	logger zerolog.Logger
}

// NewGuard creates a quota guard backed by the given Redis client.
func NewGuard(redisClient *redis.Client, config Config, logger zerolog.Logger) *Guard {
	if config.MaxConcurrentImports <= 0 {
		config.MaxConcurrentImports = 5
	}
	if config.FaultBudget <= 0 {
		config.FaultBudget = 20
	}
	if config.FaultWindow <= 0 {
		config.FaultWindow = 60 * time.Second
	}
	if config.SlotTTL <= 0 {
		config.SlotTTL = 30 * time.Minute
	}
	return &Guard{
		redis:  redisClient,
		config: config,
		logger: logger,
	}
}

// slotKey is the per-network counter of running imports.
func slotKey(networkCode string) string {
	return fmt.Sprintf("gam:quota:%s:slots", networkCode)
}

// faultKey is the per-network fault counter for the current window.
func faultKey(networkCode string) string {
	return fmt.Sprintf("gam:quota:%s:faults", networkCode)
}

// AcquireImportSlot reserves one concurrent import slot for the network.
// Returns false when the network is already at its cap.
func (g *Guard) AcquireImportSlot(ctx context.Context, networkCode string) (bool, error) {
	key := slotKey(networkCode)

	n, err := g.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("acquire import slot: %w", err)
	}
	if n == 1 {
		// First holder sets the TTL so a crashed process cannot pin the slot forever
		if err := g.redis.Expire(ctx, key, g.config.SlotTTL).Err(); err != nil {
			g.logger.Warn().Err(err).Str("network", networkCode).Msg("Failed to set slot TTL")
		}
	}

	if int(n) > g.config.MaxConcurrentImports {
		if err := g.redis.Decr(ctx, key).Err(); err != nil {
			g.logger.Warn().Err(err).Str("network", networkCode).Msg("Failed to roll back slot")
		}
		quotaSlotRejectionsTotal.Inc()
		g.logger.Warn().
			Str("network", networkCode).
			Int("max_concurrent_imports", g.config.MaxConcurrentImports).
			Msg("Import slot rejected - network at cap")
		return false, nil
	}

	g.logger.Debug().
		Str("network", networkCode).
		Int64("slots_in_use", n).
		Msg("Import slot acquired")
	return true, nil
}

// ReleaseImportSlot frees one concurrent import slot for the network.
func (g *Guard) ReleaseImportSlot(ctx context.Context, networkCode string) error {
	key := slotKey(networkCode)

	n, err := g.redis.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("release import slot: %w", err)
	}
	if n < 0 {
		// Double release or expired key; clamp rather than go negative
		if err := g.redis.Set(ctx, key, 0, g.config.SlotTTL).Err(); err != nil {
			return fmt.Errorf("clamp import slots: %w", err)
		}
	}
	return nil
}

// RecordFault counts one upstream fault against the network's budget.
// The first fault of a window starts the window.
func (g *Guard) RecordFault(ctx context.Context, networkCode string) error {
	key := faultKey(networkCode)

	n, err := g.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("record fault: %w", err)
	}
	if n == 1 {
		if err := g.redis.Expire(ctx, key, g.config.FaultWindow).Err(); err != nil {
			return fmt.Errorf("start fault window: %w", err)
		}
	}
	quotaFaultsTotal.Inc()

	if int(n) >= g.config.FaultBudget {
		g.logger.Error().
			Str("network", networkCode).
			Int64("faults", n).
			Int("fault_budget", g.config.FaultBudget).
			Msg("Fault budget exhausted - new requests will be blocked")
	}
	return nil
}

// ShouldAllowRequest reports whether the fault budget still permits requests
// for the network. Implements the client's QuotaGuard interface.
func (g *Guard) ShouldAllowRequest(ctx context.Context, networkCode string) (bool, error) {
	n, err := g.redis.Get(ctx, faultKey(networkCode)).Int()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("get fault count: %w", err)
	}

	if n >= g.config.FaultBudget {
		quotaBlocksTotal.Inc()
		g.logger.Warn().
			Str("network", networkCode).
			Int("faults", n).
			Msg("Request blocked - fault budget exhausted")
		return false, nil
	}
	return true, nil
}
