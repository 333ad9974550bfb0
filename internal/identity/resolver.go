// Package identity resolves the signed-in user to a trading service user id.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tradezone-dashboard/internal/autherr"
)

// ErrInvalidUserID is returned when the mapping service answers with id 0.
var ErrInvalidUserID = errors.New("mapping returned no trading user id")

// Source fetches the trading user id of the current session.
type Source interface {
	TradingUserID(ctx context.Context) (int64, error)
}

// Resolver caches the trading user id for a fixed TTL. Concurrent misses
// share a single request. There is no fallback id: failures are reported to
// the error handler and returned.
type Resolver struct {
	source   Source
	errors   *autherr.Handler
	ttl      time.Duration
	logger   *zap.Logger
	group    singleflight.Group
	now      func() time.Time
	mu       sync.Mutex
	cachedID int64
	expiry   time.Time
	// generation is bumped by Clear; a fetch started before a Clear does
	// not cache its result.
	generation uint64
}

// NewResolver creates a Resolver.
func NewResolver(source Source, errs *autherr.Handler, ttl time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		source: source,
		errors: errs,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Resolve returns the cached id while it is fresh, otherwise fetches it.
func (r *Resolver) Resolve(ctx context.Context) (int64, error) {
	r.mu.Lock()
	if r.cachedID != 0 && r.now().Before(r.expiry) {
		id := r.cachedID
		r.mu.Unlock()
		return id, nil
	}
	r.mu.Unlock()

	r.mu.Lock()
	gen := r.generation
	r.mu.Unlock()

	v, err, _ := r.group.Do(fmt.Sprintf("trading-user-id/%d", gen), func() (interface{}, error) {
		return r.fetch(ctx, gen)
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (r *Resolver) fetch(ctx context.Context, gen uint64) (int64, error) {
	r.logger.Debug("Trading user id cache empty or expired, fetching")

	id, err := r.source.TradingUserID(ctx)
	if err == nil && id == 0 {
		err = ErrInvalidUserID
	}
	if err != nil {
		ae := r.errors.HandleMappingError(err, "resolve-trading-user-id")
		return 0, fmt.Errorf("user mapping failed: %w", ae)
	}

	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		r.logger.Debug("Session cleared during lookup, not caching trading user id")
		return id, nil
	}
	r.cachedID = id
	r.expiry = r.now().Add(r.ttl)
	r.mu.Unlock()

	r.logger.Info("Cached trading user id", zap.Int64("trading_user_id", id))
	return id, nil
}

// Clear drops the cached id so the next Resolve fetches again.
func (r *Resolver) Clear() {
	r.mu.Lock()
	r.cachedID = 0
	r.expiry = time.Time{}
	r.generation++
	r.mu.Unlock()
}
