package arbiter

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGrants map[string]int64

func (g fakeGrants) ResolveToken(_ context.Context, token string) (int64, error) {
	return g[token], nil
}

func newTestArbiter(t *testing.T) (*Arbiter, *session.MemoryStore, *time.Time) {
	t.Helper()

	store := session.NewMemoryStore()
	grants := fakeGrants{"token-1": 1, "token-2": 2}
	arb := New(store, grants, nil)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	arb.now = func() time.Time { return now }

	return arb, store, &now
}

var (
	clientA = Identity{IPAddress: "10.0.0.1", UserAgent: "safari"}
	clientB = Identity{IPAddress: "10.0.0.2", UserAgent: "firefox"}
)

func TestClaimNewSession(t *testing.T) {
	arb, store, _ := newTestArbiter(t)
	ctx := context.Background()

	lease, err := arb.Claim(ctx, "token-1", clientA, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), lease.AssignmentID)
	assert.NotEmpty(t, lease.Credential)

	stored, err := store.GetByAssignment(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, lease.Credential, stored.Credential)
	assert.Equal(t, clientA.IPAddress, stored.IPAddress)
	assert.Equal(t, clientA.UserAgent, stored.UserAgent)
}

func TestClaimUnknownToken(t *testing.T) {
	arb, _, _ := newTestArbiter(t)

	_, err := arb.Claim(context.Background(), "no-such-token", clientA, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimWithCredentialIsIdempotent(t *testing.T) {
	arb, _, now := newTestArbiter(t)
	ctx := context.Background()

	first, err := arb.Claim(ctx, "token-1", clientA, "")
	require.NoError(t, err)

	*now = now.Add(5 * time.Second)

	second, err := arb.Claim(ctx, "token-1", clientA, first.Credential)
	require.NoError(t, err)
	assert.Equal(t, first.Credential, second.Credential)

	third, err := arb.Claim(ctx, "token-1", clientA, first.Credential)
	require.NoError(t, err)
	assert.Equal(t, first.Credential, third.Credential)
}

func TestClaimSameIdentityTakesOver(t *testing.T) {
	arb, store, _ := newTestArbiter(t)
	ctx := context.Background()

	first, err := arb.Claim(ctx, "token-1", clientA, "")
	require.NoError(t, err)

	// Hard refresh: same client, lost credential.
	second, err := arb.Claim(ctx, "token-1", clientA, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.Credential, second.Credential)

	// Old credential is retired, not just shadowed.
	stale, err := store.GetByCredential(ctx, first.Credential)
	require.NoError(t, err)
	assert.Nil(t, stale)

	assert.ErrorIs(t, arb.Heartbeat(ctx, first.Credential), ErrNotFound)
	assert.NoError(t, arb.Heartbeat(ctx, second.Credential))
}

func TestClaimForeignCredentialSameIdentityStillTakesOver(t *testing.T) {
	arb, _, _ := newTestArbiter(t)
	ctx := context.Background()

	first, err := arb.Claim(ctx, "token-1", clientA, "")
	require.NoError(t, err)

	second, err := arb.Claim(ctx, "token-1", clientA, "bogus-credential")
	require.NoError(t, err)
	assert.NotEqual(t, first.Credential, second.Credential)
}

func TestClaimDifferentIdentityConflicts(t *testing.T) {
	arb, store, _ := newTestArbiter(t)
	ctx := context.Background()

	first, err := arb.Claim(ctx, "token-1", clientA, "")
	require.NoError(t, err)

	before, err := store.GetByAssignment(ctx, 1)
	require.NoError(t, err)

	_, err = arb.Claim(ctx, "token-1", clientB, "")
	assert.ErrorIs(t, err, ErrConflict)

	// The losing claim must not touch the existing record.
	after, err := store.GetByAssignment(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, first.Credential, after.Credential)
}

func TestClaimAfterActivityWindowSupersedes(t *testing.T) {
	arb, _, now := newTestArbiter(t)
	ctx := context.Background()

	first, err := arb.Claim(ctx, "token-1", clientA, "")
	require.NoError(t, err)

	*now = now.Add(ActivityWindow + time.Second)

	second, err := arb.Claim(ctx, "token-1", clientB, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.Credential, second.Credential)

	assert.ErrorIs(t, arb.Heartbeat(ctx, first.Credential), ErrNotFound)
}

func TestHeartbeatExtendsLease(t *testing.T) {
	arb, _, now := newTestArbiter(t)
	ctx := context.Background()

	lease, err := arb.Claim(ctx, "token-1", clientA, "")
	require.NoError(t, err)

	// Keep beating past the window; the lease must survive.
	for i := 0; i < 4; i++ {
		*now = now.Add(20 * time.Second)
		require.NoError(t, arb.Heartbeat(ctx, lease.Credential))
	}

	_, err = arb.Claim(ctx, "token-1", clientB, "")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestHeartbeatUnknownCredential(t *testing.T) {
	arb, _, _ := newTestArbiter(t)

	err := arb.Heartbeat(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReleaseIsIdempotent(t *testing.T) {
	arb, _, _ := newTestArbiter(t)
	ctx := context.Background()

	lease, err := arb.Claim(ctx, "token-1", clientA, "")
	require.NoError(t, err)

	assert.NoError(t, arb.Release(ctx, lease.Credential))
	assert.NoError(t, arb.Release(ctx, lease.Credential))
	assert.NoError(t, arb.Release(ctx, "never-existed"))
}

func TestHandoffScenario(t *testing.T) {
	arb, _, _ := newTestArbiter(t)
	ctx := context.Background()

	// X claims, Y is blocked while X is live.
	x, err := arb.Claim(ctx, "token-1", clientA, "")
	require.NoError(t, err)

	_, err = arb.Claim(ctx, "token-1", clientB, "")
	require.ErrorIs(t, err, ErrConflict)
	require.NoError(t, arb.Heartbeat(ctx, x.Credential))

	// X leaves, Y gets in with a fresh credential.
	require.NoError(t, arb.Release(ctx, x.Credential))

	y, err := arb.Claim(ctx, "token-1", clientB, "")
	require.NoError(t, err)
	assert.NotEqual(t, x.Credential, y.Credential)

	assert.ErrorIs(t, arb.Heartbeat(ctx, x.Credential), ErrNotFound)
	assert.NoError(t, arb.Heartbeat(ctx, y.Credential))
}

// interceptStore fires a one-shot hook right after a credential lookup,
// so tests can interleave a claim between a read and the write that
// follows it.
type interceptStore struct {
	session.Store
	afterGetByCredential func()
}

func (s *interceptStore) GetByCredential(ctx context.Context, credential string) (*session.ViewSession, error) {
	out, err := s.Store.GetByCredential(ctx, credential)
	if hook := s.afterGetByCredential; hook != nil {
		s.afterGetByCredential = nil
		hook()
	}
	return out, err
}

func TestHeartbeatRacingTakeoverDoesNotResurrectCredential(t *testing.T) {
	store := &interceptStore{Store: session.NewMemoryStore()}
	arb := New(store, fakeGrants{"token-1": 1}, nil)
	ctx := context.Background()

	first, err := arb.Claim(ctx, "token-1", clientA, "")
	require.NoError(t, err)

	// A zombie tab heartbeats while the same client hard-refreshes:
	// the takeover lands between the heartbeat's lookup and its write.
	var second *Lease
	store.afterGetByCredential = func() {
		lease, err := arb.Claim(ctx, "token-1", clientA, "")
		require.NoError(t, err)
		second = lease
	}

	err = arb.Heartbeat(ctx, first.Credential)
	assert.ErrorIs(t, err, ErrNotFound)

	// The rotation must stick: old credential dead, new one live.
	require.NotNil(t, second)
	assert.ErrorIs(t, arb.Heartbeat(ctx, first.Credential), ErrNotFound)
	assert.NoError(t, arb.Heartbeat(ctx, second.Credential))

	stored, err := store.GetByAssignment(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, second.Credential, stored.Credential)
}

func TestReleaseRacingTakeoverKeepsFreshSession(t *testing.T) {
	store := &interceptStore{Store: session.NewMemoryStore()}
	arb := New(store, fakeGrants{"token-1": 1}, nil)
	ctx := context.Background()

	first, err := arb.Claim(ctx, "token-1", clientA, "")
	require.NoError(t, err)

	var second *Lease
	store.afterGetByCredential = func() {
		lease, err := arb.Claim(ctx, "token-1", clientA, "")
		require.NoError(t, err)
		second = lease
	}

	// The release targets a credential the takeover just retired; it
	// must not tear down the rotated session.
	require.NoError(t, arb.Release(ctx, first.Credential))

	require.NotNil(t, second)
	assert.NoError(t, arb.Heartbeat(ctx, second.Credential))
}

func TestEvictDropsCurrentSession(t *testing.T) {
	arb, _, _ := newTestArbiter(t)
	ctx := context.Background()

	lease, err := arb.Claim(ctx, "token-1", clientA, "")
	require.NoError(t, err)

	require.NoError(t, arb.Evict(ctx, 1))
	assert.ErrorIs(t, arb.Heartbeat(ctx, lease.Credential), ErrNotFound)

	// Idle or unknown assignments are no-ops.
	assert.NoError(t, arb.Evict(ctx, 1))
	assert.NoError(t, arb.Evict(ctx, 99))
}

func TestConcurrentClaimsSingleWinner(t *testing.T) {
	store := session.NewMemoryStore()
	arb := New(store, fakeGrants{"token-1": 1}, nil)
	ctx := context.Background()

	const claimants = 32

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			identity := Identity{
				IPAddress: "10.0.1." + strconv.Itoa(n),
				UserAgent: "client-" + strconv.Itoa(n),
			}
			_, err := arb.Claim(ctx, "token-1", identity, "")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// All identities are distinct, so exactly one racer may win.
	assert.Equal(t, 1, wins)
	assert.Equal(t, claimants-1, conflicts)

	stored, err := store.GetByAssignment(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, stored)
}
