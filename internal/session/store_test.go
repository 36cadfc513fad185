package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Both implementations must satisfy the same contract, so the suite runs
// against each.
func stores(t *testing.T) map[string]Store {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client),
	}
}

func sample(assignmentID int64, credential string) ViewSession {
	return ViewSession{
		AssignmentID: assignmentID,
		Credential:   credential,
		LastActiveAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		IPAddress:    "10.0.0.1",
		UserAgent:    "safari",
	}
}

func TestStoreUpsertAndGet(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := sample(1, "cred-1")
			require.NoError(t, store.Upsert(ctx, s))

			byAssignment, err := store.GetByAssignment(ctx, 1)
			require.NoError(t, err)
			require.NotNil(t, byAssignment)
			assert.Equal(t, s.Credential, byAssignment.Credential)
			assert.True(t, s.LastActiveAt.Equal(byAssignment.LastActiveAt))

			byCredential, err := store.GetByCredential(ctx, "cred-1")
			require.NoError(t, err)
			require.NotNil(t, byCredential)
			assert.Equal(t, s.AssignmentID, byCredential.AssignmentID)
		})
	}
}

func TestStoreMissIsNil(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			byAssignment, err := store.GetByAssignment(ctx, 42)
			require.NoError(t, err)
			assert.Nil(t, byAssignment)

			byCredential, err := store.GetByCredential(ctx, "missing")
			require.NoError(t, err)
			assert.Nil(t, byCredential)
		})
	}
}

func TestStoreRotationRetiresOldCredential(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Upsert(ctx, sample(1, "cred-old")))
			require.NoError(t, store.Upsert(ctx, sample(1, "cred-new")))

			old, err := store.GetByCredential(ctx, "cred-old")
			require.NoError(t, err)
			assert.Nil(t, old)

			current, err := store.GetByAssignment(ctx, 1)
			require.NoError(t, err)
			require.NotNil(t, current)
			assert.Equal(t, "cred-new", current.Credential)
		})
	}
}

func TestStoreDeleteByCredential(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Upsert(ctx, sample(1, "cred-1")))

			require.NoError(t, store.DeleteByCredential(ctx, "cred-1"))

			gone, err := store.GetByAssignment(ctx, 1)
			require.NoError(t, err)
			assert.Nil(t, gone)

			// Deleting again, or deleting the unknown, is a no-op.
			assert.NoError(t, store.DeleteByCredential(ctx, "cred-1"))
			assert.NoError(t, store.DeleteByCredential(ctx, "never-existed"))
		})
	}
}

func TestStoreIsolatesAssignments(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Upsert(ctx, sample(1, "cred-1")))
			require.NoError(t, store.Upsert(ctx, sample(2, "cred-2")))

			require.NoError(t, store.DeleteByCredential(ctx, "cred-1"))

			other, err := store.GetByAssignment(ctx, 2)
			require.NoError(t, err)
			require.NotNil(t, other)
			assert.Equal(t, "cred-2", other.Credential)
		})
	}
}

func TestGenerateCredential(t *testing.T) {
	a, err := GenerateCredential()
	require.NoError(t, err)
	b, err := GenerateCredential()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
	assert.GreaterOrEqual(t, len(a), 43) // 32 bytes base64url
}
