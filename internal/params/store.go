package params

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/4liaghaie/scraper-dashboard/internal/logger"
)

// ErrCacheMiss is returned by a Cache when no value is stored for a kind.
var ErrCacheMiss = errors.New("params: cache miss")

// Cache is the durable key-value slot behind the store, keyed per job
// kind. Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the serialized values for a kind, or ErrCacheMiss.
	Get(ctx context.Context, kind string) ([]byte, error)
	// Set stores serialized values for a kind, last writer wins.
	Set(ctx context.Context, kind string, data []byte) error
}

// Store resolves and persists per-job-kind parameter values. Persistence
// is strictly best effort: a broken cache degrades to defaults and never
// fails a launch.
type Store struct {
	cache  Cache
	logger logger.Logger
}

// NewStore creates a parameter store over the given cache.
func NewStore(cache Cache, log logger.Logger) *Store {
	return &Store{cache: cache, logger: log}
}

// Load returns the persisted overrides for a kind. Missing, malformed, or
// unreadable data all resolve to nil, never an error.
func (s *Store) Load(ctx context.Context, kind string) Values {
	data, err := s.cache.Get(ctx, kind)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("parameter cache read failed",
				logger.String("kind", kind),
				logger.Error(err),
			)
		}
		return nil
	}

	var values Values
	if err := json.Unmarshal(data, &values); err != nil {
		s.logger.Warn("parameter cache holds malformed data, ignoring",
			logger.String("kind", kind),
			logger.Error(err),
		)
		return nil
	}
	return values
}

// Save persists the values for a kind. Failures are swallowed after
// logging.
func (s *Store) Save(ctx context.Context, kind string, values Values) {
	data, err := json.Marshal(values)
	if err != nil {
		s.logger.Warn("parameter values not serializable",
			logger.String("kind", kind),
			logger.Error(err),
		)
		return
	}
	if err := s.cache.Set(ctx, kind, data); err != nil {
		s.logger.Warn("parameter cache write failed",
			logger.String("kind", kind),
			logger.Error(err),
		)
	}
}

// Resolve layers defaults, caller seed, and persisted overrides for a
// kind, in increasing priority. This is the form-initialization ordering:
// the dashboard re-opens with the last persisted values on top. Launch
// requests invert the top two layers so explicit values always win.
func (s *Store) Resolve(ctx context.Context, kind string, defs []Definition, seed Values) Values {
	return Merge(ResolveDefaults(defs), seed, s.Load(ctx, kind))
}

// Reset returns the pure defaults and overwrites the persisted overrides
// with them.
func (s *Store) Reset(ctx context.Context, kind string, defs []Definition) Values {
	defaults := ResolveDefaults(defs)
	s.Save(ctx, kind, defaults)
	return defaults
}
