package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// recordTTL is storage hygiene only. Liveness is decided by the arbiter
// against LastActiveAt, so the TTL just has to outlast any legitimate
// session, not the activity window.
const recordTTL = 24 * time.Hour

type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed view session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "viewsession:",
	}
}

func (r *RedisStore) assignmentKey(assignmentID int64) string {
	return r.prefix + "assignment:" + strconv.FormatInt(assignmentID, 10)
}

func (r *RedisStore) credentialKey(credential string) string {
	return r.prefix + "credential:" + credential
}

func (r *RedisStore) GetByAssignment(ctx context.Context, assignmentID int64) (*ViewSession, error) {
	return r.get(ctx, r.assignmentKey(assignmentID))
}

func (r *RedisStore) GetByCredential(ctx context.Context, credential string) (*ViewSession, error) {
	val, err := r.client.Get(ctx, r.credentialKey(credential)).Result()
	if err == redis.Nil {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}

	assignmentID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session: corrupt credential index: %w", err)
	}

	s, err := r.get(ctx, r.assignmentKey(assignmentID))
	if err != nil {
		return nil, err
	}
	if s == nil || s.Credential != credential {
		// Index outlived a rotated credential.
		return nil, nil
	}

	return s, nil
}

func (r *RedisStore) get(ctx context.Context, key string) (*ViewSession, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}

	var s ViewSession
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}

	return &s, nil
}

func (r *RedisStore) Upsert(ctx context.Context, s ViewSession) error {
	if s.AssignmentID == 0 || s.Credential == "" {
		return fmt.Errorf("session: missing assignment_id or credential")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	existing, err := r.GetByAssignment(ctx, s.AssignmentID)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if existing != nil && existing.Credential != s.Credential {
			pipe.Del(ctx, r.credentialKey(existing.Credential))
		}
		pipe.Set(ctx, r.assignmentKey(s.AssignmentID), data, recordTTL)
		pipe.Set(ctx, r.credentialKey(s.Credential),
			strconv.FormatInt(s.AssignmentID, 10), recordTTL)
		return nil
	})
	return err
}

func (r *RedisStore) DeleteByCredential(ctx context.Context, credential string) error {
	s, err := r.GetByCredential(ctx, credential)
	if err != nil {
		return err
	}
	if s == nil {
		return nil // already gone
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.assignmentKey(s.AssignmentID))
		pipe.Del(ctx, r.credentialKey(credential))
		return nil
	})
	return err
}
