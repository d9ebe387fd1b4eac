// Package identity resolves the role for a signed-in identity from the
// profile store, with a session-lifetime cache in front of it.
package identity

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/shared/errors"
	"github.com/linkaid/platform/internal/shared/metrics"
	"github.com/linkaid/platform/internal/shared/types"
)

const cacheKeyPrefix = "linkaid:role:"

// ProfileSource looks up the role field of a profile document.
// Implemented by user.Repository.
type ProfileSource interface {
	RoleOf(ctx context.Context, userID types.ID) (auth.Role, error)
}

// Resolver caches role lookups. Concurrent resolutions for the same
// UID collapse into one profile fetch, so two overlapping requests
// during a sign-in transition cannot interleave stale results.
type Resolver struct {
	source ProfileSource
	redis  *redis.Client // optional
	ttl    time.Duration
	log    *zap.Logger

	group singleflight.Group

	mu    sync.RWMutex
	local map[types.ID]localEntry
}

type localEntry struct {
	role      auth.Role
	expiresAt time.Time
}

// NewResolver creates a resolver. redisClient may be nil, in which
// case only the in-process cache is used.
func NewResolver(source ProfileSource, redisClient *redis.Client, ttl time.Duration, log *zap.Logger) *Resolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		source: source,
		redis:  redisClient,
		ttl:    ttl,
		log:    log,
		local:  make(map[types.ID]localEntry),
	}
}

// Resolve returns the current role for the identity, fetching the
// profile document on a cache miss.
func (r *Resolver) Resolve(ctx context.Context, userID types.ID) (auth.Role, error) {
	if userID.IsZero() {
		return "", errors.Unauthorized("no identity")
	}

	if role, ok := r.fromCache(ctx, userID); ok {
		metrics.RoleResolution("hit")
		return role, nil
	}

	v, err, _ := r.group.Do(userID.String(), func() (interface{}, error) {
		// Re-check under the flight: another caller may have filled
		// the cache while we queued.
		if role, ok := r.fromCache(ctx, userID); ok {
			return role, nil
		}

		role, err := r.source.RoleOf(ctx, userID)
		if err != nil {
			metrics.RoleResolution("error")
			return auth.Role(""), err
		}

		metrics.RoleResolution("miss")
		r.store(ctx, userID, role)
		return role, nil
	})
	if err != nil {
		return "", err
	}
	return v.(auth.Role), nil
}

// Invalidate drops the cached role for an identity. Called by the user
// module after any role or company-linkage mutation and on sign-out.
func (r *Resolver) Invalidate(ctx context.Context, userID types.ID) {
	r.mu.Lock()
	delete(r.local, userID)
	r.mu.Unlock()

	if r.redis != nil {
		if err := r.redis.Del(ctx, cacheKeyPrefix+userID.String()).Err(); err != nil {
			r.log.Warn("role cache invalidation failed",
				zap.String("user_id", userID.String()),
				zap.Error(err))
		}
	}
}

func (r *Resolver) fromCache(ctx context.Context, userID types.ID) (auth.Role, bool) {
	r.mu.RLock()
	entry, ok := r.local[userID]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.role, true
	}

	if r.redis == nil {
		return "", false
	}

	val, err := r.redis.Get(ctx, cacheKeyPrefix+userID.String()).Result()
	if err != nil {
		if err != redis.Nil {
			r.log.Warn("role cache read failed",
				zap.String("user_id", userID.String()),
				zap.Error(err))
		}
		return "", false
	}

	role := auth.Role(val)
	r.mu.Lock()
	r.local[userID] = localEntry{role: role, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()
	return role, true
}

func (r *Resolver) store(ctx context.Context, userID types.ID, role auth.Role) {
	r.mu.Lock()
	r.local[userID] = localEntry{role: role, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	if r.redis != nil {
		if err := r.redis.Set(ctx, cacheKeyPrefix+userID.String(), string(role), r.ttl).Err(); err != nil {
			r.log.Warn("role cache write failed",
				zap.String("user_id", userID.String()),
				zap.Error(err))
		}
	}
}
