// Package settings persists per-user export preferences and a TTL-bounded
// publisher directory cache in Redis. Preferences survive between sessions;
// the directory is re-fetched from the API once its entry expires.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound indicates the requested key was not found.
	ErrNotFound = errors.New("settings not found")

	// ErrInvalidEntry indicates a stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid settings entry")
)

// Prometheus metrics for the directory cache.
var (
	directoryHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gam_directory_cache_hits_total",
		Help: "Total publisher directory cache hits",
	})

	directoryMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gam_directory_cache_misses_total",
		Help: "Total publisher directory cache misses",
	})

	settingsErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gam_settings_errors_total",
		Help: "Total settings store errors by operation",
	}, []string{"operation"})
)

// UserSettings are the export preferences one user carries between sessions.
type UserSettings struct {
	// NetworkCode of the parent network the user exports from.
	NetworkCode string `json:"network_code"`

	// Format is the preferred display-row shape ("summary" or "detailed").
	Format string `json:"format"`

	// PageSize overrides the planner's default page size when > 0.
	PageSize int `json:"page_size,omitempty"`

	// MaxResults overrides the planner's result cap when > 0.
	MaxResults int `json:"max_results,omitempty"`

	// UpdatedAt is when the settings were last saved.
	UpdatedAt time.Time `json:"updated_at"`
}

// Publisher is one child publisher in the directory.
type Publisher struct {
	ChildNetworkCode string `json:"child_network_code"`
	Name             string `json:"name"`
	Approved         bool   `json:"approved"`
}

// directoryEntry is the stored form of a cached publisher directory.
type directoryEntry struct {
	Publishers []Publisher `json:"publishers"`
	CachedAt   time.Time   `json:"cached_at"`
	Expires    time.Time   `json:"expires"`
}

// isExpired returns true once the entry passed its expiry time.
func (e *directoryEntry) isExpired() bool {
	return time.Now().After(e.Expires)
}

// DefaultDirectoryTTL bounds how long a cached publisher directory is served
// before the next lookup goes back to the API.
const DefaultDirectoryTTL = 15 * time.Minute

// Store persists user settings and the publisher directory in Redis.
type Store struct {
	redis        *redis.Client
	directoryTTL time.Duration
	logger       zerolog.Logger
}

// NewStore creates a settings store. A non-positive directoryTTL falls back
// to DefaultDirectoryTTL.
func NewStore(redisClient *redis.Client, directoryTTL time.Duration) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if directoryTTL <= 0 {
		directoryTTL = DefaultDirectoryTTL
	}
	return &Store{
		redis:        redisClient,
		directoryTTL: directoryTTL,
		logger:       log.With().Str("component", "settings-store").Logger(),
	}
}

func settingsKey(userID string) string {
	return fmt.Sprintf("gam:settings:%s", userID)
}

func directoryKey(networkCode string) string {
	return fmt.Sprintf("gam:directory:%s", networkCode)
}

// SaveSettings stores a user's export preferences. Settings carry no TTL;
// they persist until overwritten.
func (s *Store) SaveSettings(ctx context.Context, userID string, settings UserSettings) error {
	settings.UpdatedAt = time.Now()

	data, err := json.Marshal(settings)
	if err != nil {
		settingsErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.redis.Set(ctx, settingsKey(userID), data, 0).Err(); err != nil {
		settingsErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	s.logger.Debug().Str("user_id", userID).Msg("Settings saved")
	return nil
}

// LoadSettings retrieves a user's export preferences.
// Returns ErrNotFound when the user has never saved any.
func (s *Store) LoadSettings(ctx context.Context, userID string) (*UserSettings, error) {
	data, err := s.redis.Get(ctx, settingsKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		settingsErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		settingsErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &settings, nil
}

// SaveDirectory caches the publisher directory for a network. The entry is
// stored with the configured TTL so Redis drops it on its own.
func (s *Store) SaveDirectory(ctx context.Context, networkCode string, publishers []Publisher) error {
	now := time.Now()
	entry := directoryEntry{
		Publishers: publishers,
		CachedAt:   now,
		Expires:    now.Add(s.directoryTTL),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		settingsErrors.WithLabelValues("save_directory").Inc()
		return fmt.Errorf("marshal directory: %w", err)
	}
	if err := s.redis.Set(ctx, directoryKey(networkCode), data, s.directoryTTL).Err(); err != nil {
		settingsErrors.WithLabelValues("save_directory").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	s.logger.Debug().
		Str("network_code", networkCode).
		Int("publishers", len(publishers)).
		Dur("ttl", s.directoryTTL).
		Msg("Publisher directory cached")
	return nil
}

// LoadDirectory retrieves the cached publisher directory for a network.
// Returns ErrNotFound on a miss or once the entry expired.
func (s *Store) LoadDirectory(ctx context.Context, networkCode string) ([]Publisher, error) {
	key := directoryKey(networkCode)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			directoryMisses.Inc()
			return nil, ErrNotFound
		}
		settingsErrors.WithLabelValues("load_directory").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry directoryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		settingsErrors.WithLabelValues("load_directory").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Redis TTL normally drops the entry first; the expiry check covers
	// clock skew between writer and reader.
	if entry.isExpired() {
		_ = s.redis.Del(ctx, key).Err()
		directoryMisses.Inc()
		return nil, ErrNotFound
	}

	directoryHits.Inc()
	return entry.Publishers, nil
}
