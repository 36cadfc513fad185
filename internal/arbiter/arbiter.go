package arbiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/logger"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/metrics"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/session"
)

// ActivityWindow is the liveness lease. A session with no heartbeat or
// claim inside this window is stale and loses its grip on the assignment.
const ActivityWindow = 30 * time.Second

var (
	ErrNotFound = errors.New("arbiter: not found")
	ErrConflict = errors.New("arbiter: assignment active in another session")
)

// Grants resolves share tokens to assignment IDs. A miss is (0, nil);
// errors are storage faults.
type Grants interface {
	ResolveToken(ctx context.Context, token string) (int64, error)
}

// Lease is the outcome of a successful claim.
type Lease struct {
	AssignmentID int64
	Credential   string
}

// Arbiter decides, per assignment, whether an incoming viewer may hold
// the view session. All claim decisions for one assignment are serialized.
type Arbiter struct {
	store   session.Store
	grants  Grants
	matcher IdentityMatcher
	locks   *keyedMutex
	now     func() time.Time
}

func New(store session.Store, grants Grants, matcher IdentityMatcher) *Arbiter {
	if matcher == nil {
		matcher = ExactMatcher{}
	}
	return &Arbiter{
		store:   store,
		grants:  grants,
		matcher: matcher,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

// Claim grants, renews or takes over the view session for the assignment
// behind token. presented is the credential the client already holds, if
// any. Exactly one claimant wins when different clients race.
func (a *Arbiter) Claim(ctx context.Context, token string, claimant Identity, presented string) (*Lease, error) {
	assignmentID, err := a.grants.ResolveToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("arbiter: resolve token: %w", err)
	}
	if assignmentID == 0 {
		return nil, ErrNotFound
	}

	a.locks.lock(assignmentID)
	defer a.locks.unlock(assignmentID)

	now := a.now()

	existing, err := a.store.GetByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("arbiter: load session: %w", err)
	}

	if existing != nil && now.Sub(existing.LastActiveAt) < ActivityWindow {
		return a.claimLive(ctx, existing, claimant, presented, now)
	}

	// No session, or a stale one about to be superseded.
	credential, err := session.GenerateCredential()
	if err != nil {
		return nil, err
	}

	if err := a.store.Upsert(ctx, session.ViewSession{
		AssignmentID: assignmentID,
		Credential:   credential,
		LastActiveAt: now,
		IPAddress:    claimant.IPAddress,
		UserAgent:    claimant.UserAgent,
	}); err != nil {
		return nil, fmt.Errorf("arbiter: store session: %w", err)
	}

	metrics.ClaimsTotal.WithLabelValues("created").Inc()
	logger.Debug("view session created", map[string]any{
		"assignment_id": assignmentID,
	})

	return &Lease{AssignmentID: assignmentID, Credential: credential}, nil
}

func (a *Arbiter) claimLive(ctx context.Context, live *session.ViewSession, claimant Identity, presented string, now time.Time) (*Lease, error) {
	// Same credential: the current holder is renewing, e.g. a reload
	// that kept its local state. Idempotent.
	if presented != "" && presented == live.Credential {
		live.LastActiveAt = now
		if err := a.store.Upsert(ctx, *live); err != nil {
			return nil, fmt.Errorf("arbiter: refresh session: %w", err)
		}
		metrics.ClaimsTotal.WithLabelValues("renewed").Inc()
		return &Lease{AssignmentID: live.AssignmentID, Credential: live.Credential}, nil
	}

	// Same client without its credential: a hard refresh lost local
	// state. Rotate the credential in place instead of locking them out.
	held := Identity{IPAddress: live.IPAddress, UserAgent: live.UserAgent}
	if a.matcher.SameClient(held, claimant) {
		credential, err := session.GenerateCredential()
		if err != nil {
			return nil, err
		}
		live.Credential = credential
		live.LastActiveAt = now
		if err := a.store.Upsert(ctx, *live); err != nil {
			return nil, fmt.Errorf("arbiter: take over session: %w", err)
		}
		metrics.ClaimsTotal.WithLabelValues("takeover").Inc()
		logger.Debug("view session taken over", map[string]any{
			"assignment_id": live.AssignmentID,
		})
		return &Lease{AssignmentID: live.AssignmentID, Credential: credential}, nil
	}

	metrics.ClaimsTotal.WithLabelValues("conflict").Inc()
	return nil, ErrConflict
}

// Heartbeat extends the lease behind credential. ErrNotFound tells the
// caller it is no longer (or never was) the holder.
func (a *Arbiter) Heartbeat(ctx context.Context, credential string) error {
	s, err := a.lockByCredential(ctx, credential)
	if err != nil {
		return err
	}
	if s == nil {
		return ErrNotFound
	}
	defer a.locks.unlock(s.AssignmentID)

	s.LastActiveAt = a.now()
	if err := a.store.Upsert(ctx, *s); err != nil {
		return fmt.Errorf("arbiter: refresh session: %w", err)
	}
	return nil
}

// Release drops the session behind credential. Releasing an unknown
// credential is a no-op; leaving must never fail the client.
func (a *Arbiter) Release(ctx context.Context, credential string) error {
	s, err := a.lockByCredential(ctx, credential)
	if err != nil {
		return err
	}
	if s == nil {
		return nil // already gone
	}
	defer a.locks.unlock(s.AssignmentID)

	if err := a.store.DeleteByCredential(ctx, credential); err != nil {
		return fmt.Errorf("arbiter: release session: %w", err)
	}
	return nil
}

// Evict drops whatever session currently holds assignmentID, e.g. when
// the assignment itself is deleted. Evicting an idle assignment is a
// no-op.
func (a *Arbiter) Evict(ctx context.Context, assignmentID int64) error {
	a.locks.lock(assignmentID)
	defer a.locks.unlock(assignmentID)

	s, err := a.store.GetByAssignment(ctx, assignmentID)
	if err != nil {
		return fmt.Errorf("arbiter: load session: %w", err)
	}
	if s == nil {
		return nil
	}

	if err := a.store.DeleteByCredential(ctx, s.Credential); err != nil {
		return fmt.Errorf("arbiter: evict session: %w", err)
	}
	return nil
}

// lockByCredential resolves credential to its session and returns it
// with that assignment's lock held, or (nil, nil) when the credential is
// unknown. Mutating by credential has to serialize against claims on
// the same assignment: an unserialized read-modify-write racing a
// takeover would write the retired credential back over the fresh one.
func (a *Arbiter) lockByCredential(ctx context.Context, credential string) (*session.ViewSession, error) {
	s, err := a.store.GetByCredential(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("arbiter: load session: %w", err)
	}
	if s == nil {
		return nil, nil
	}

	assignmentID := s.AssignmentID
	a.locks.lock(assignmentID)

	// Re-read under the lock: a claim may have rotated or released the
	// credential between the lookup and the lock. Credentials are never
	// reused, so a hit still belongs to the same assignment.
	s, err = a.store.GetByCredential(ctx, credential)
	if err != nil {
		a.locks.unlock(assignmentID)
		return nil, fmt.Errorf("arbiter: load session: %w", err)
	}
	if s == nil {
		a.locks.unlock(assignmentID)
		return nil, nil
	}
	return s, nil
}
