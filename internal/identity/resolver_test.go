package identity

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/shared/errors"
	"github.com/linkaid/platform/internal/shared/types"
)

type fakeSource struct {
	mu    sync.Mutex
	roles map[types.ID]auth.Role
	calls int64
}

func (f *fakeSource) RoleOf(ctx context.Context, userID types.ID) (auth.Role, error) {
	atomic.AddInt64(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[userID]
	if !ok {
		return "", errors.NotFound("user", userID.String())
	}
	return role, nil
}

func newTestResolver(t *testing.T, source *fakeSource) (*Resolver, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewResolver(source, client, time.Minute, nil), mr
}

func TestResolveCachesRole(t *testing.T) {
	uid := types.NewID()
	source := &fakeSource{roles: map[types.ID]auth.Role{uid: auth.RoleInsurer}}
	resolver, _ := newTestResolver(t, source)

	for i := 0; i < 3; i++ {
		role, err := resolver.Resolve(context.Background(), uid)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if role != auth.RoleInsurer {
			t.Errorf("expected insurer, got %s", role)
		}
	}

	if got := atomic.LoadInt64(&source.calls); got != 1 {
		t.Errorf("expected a single profile fetch, got %d", got)
	}
}

func TestResolveUnknownUser(t *testing.T) {
	source := &fakeSource{roles: map[types.ID]auth.Role{}}
	resolver, _ := newTestResolver(t, source)

	_, err := resolver.Resolve(context.Background(), types.NewID())
	if err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestResolveNoIdentity(t *testing.T) {
	source := &fakeSource{}
	resolver, _ := newTestResolver(t, source)

	_, err := resolver.Resolve(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for empty identity")
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	uid := types.NewID()
	source := &fakeSource{roles: map[types.ID]auth.Role{uid: auth.RoleCivilian}}
	resolver, _ := newTestResolver(t, source)

	role, err := resolver.Resolve(context.Background(), uid)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if role != auth.RoleCivilian {
		t.Fatalf("expected civilian, got %s", role)
	}

	// Admin assignment changes the role; the mutation invalidates.
	source.mu.Lock()
	source.roles[uid] = auth.RoleTowOperator
	source.mu.Unlock()
	resolver.Invalidate(context.Background(), uid)

	role, err = resolver.Resolve(context.Background(), uid)
	if err != nil {
		t.Fatalf("resolve failed after invalidate: %v", err)
	}
	if role != auth.RoleTowOperator {
		t.Errorf("expected tow_operator after invalidation, got %s", role)
	}
}

func TestResolveSurvivesRedisOutage(t *testing.T) {
	uid := types.NewID()
	source := &fakeSource{roles: map[types.ID]auth.Role{uid: auth.RoleResponder}}
	resolver, mr := newTestResolver(t, source)

	mr.Close()

	role, err := resolver.Resolve(context.Background(), uid)
	if err != nil {
		t.Fatalf("resolve should fall back to the profile store: %v", err)
	}
	if role != auth.RoleResponder {
		t.Errorf("expected responder, got %s", role)
	}
}

func TestConcurrentResolveSingleFetch(t *testing.T) {
	uid := types.NewID()
	source := &fakeSource{roles: map[types.ID]auth.Role{uid: auth.RoleDispatcher}}
	resolver, _ := newTestResolver(t, source)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			role, err := resolver.Resolve(context.Background(), uid)
			if err != nil {
				t.Errorf("resolve failed: %v", err)
				return
			}
			if role != auth.RoleDispatcher {
				t.Errorf("expected dispatcher, got %s", role)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&source.calls); got != 1 {
		t.Errorf("expected overlapping resolutions to share one fetch, got %d", got)
	}
}
