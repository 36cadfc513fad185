package stats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/metrics"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/session"
)

// DedupWindow suppresses repeated view_assignment events per assignment,
// absorbing clients that re-announce a view on re-render.
const DedupWindow = 10 * time.Second

var (
	ErrUnauthorized = errors.New("stats: invalid or expired session")
	ErrNotFound     = errors.New("stats: assignment not found")
)

// Grants answers whether an assignment exists, for aggregation lookups.
type Grants interface {
	AssignmentExists(ctx context.Context, assignmentID int64) (bool, error)
}

// Recorder validates event submissions against live view sessions and
// persists them, deduplicating high-frequency kinds.
type Recorder struct {
	events   EventStore
	sessions session.Store
	grants   Grants

	// Serializes the dedup check-then-insert. A single mutex is enough:
	// view events arrive at human rates.
	dedupMu sync.Mutex

	now func() time.Time
}

func NewRecorder(events EventStore, sessions session.Store, grants Grants) *Recorder {
	return &Recorder{
		events:   events,
		sessions: sessions,
		grants:   grants,
		now:      time.Now,
	}
}

// Record persists an event submitted under credential. A stale session
// still recorded in the store is accepted; presenting a known credential
// is proof enough of identity for statistics. Returns false when the
// event was suppressed by the dedup window.
func (r *Recorder) Record(ctx context.Context, credential, kind string, mediaItemID *int64, details *string) (bool, error) {
	s, err := r.sessions.GetByCredential(ctx, credential)
	if err != nil {
		return false, fmt.Errorf("stats: load session: %w", err)
	}
	if s == nil {
		return false, ErrUnauthorized
	}

	now := r.now()
	event := StatisticEvent{
		AssignmentID: s.AssignmentID,
		EventType:    kind,
		MediaItemID:  mediaItemID,
		Details:      details,
		CreatedAt:    now,
	}

	if kind == KindViewAssignment {
		r.dedupMu.Lock()
		defer r.dedupMu.Unlock()

		recent, err := r.events.CountSince(ctx, s.AssignmentID, kind, now.Add(-DedupWindow))
		if err != nil {
			return false, fmt.Errorf("stats: dedup lookup: %w", err)
		}
		if recent > 0 {
			metrics.EventsTotal.WithLabelValues("ignored").Inc()
			return false, nil
		}
	}

	if err := r.events.Insert(ctx, event); err != nil {
		return false, fmt.Errorf("stats: insert event: %w", err)
	}

	metrics.EventsTotal.WithLabelValues("recorded").Inc()
	return true, nil
}

// Aggregate computes the per-assignment counters.
func (r *Recorder) Aggregate(ctx context.Context, assignmentID int64) (*Stats, error) {
	exists, err := r.grants.AssignmentExists(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("stats: assignment lookup: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	views, err := r.events.CountSince(ctx, assignmentID, KindViewAssignment, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("stats: count views: %w", err)
	}

	plays, err := r.events.CountSince(ctx, assignmentID, KindMediaPlay, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("stats: count plays: %w", err)
	}

	perItem, err := r.events.CountByItem(ctx, assignmentID, KindMediaPlay)
	if err != nil {
		return nil, fmt.Errorf("stats: count plays per item: %w", err)
	}

	stats := &Stats{
		AssignmentID: assignmentID,
		TotalViews:   views,
		TotalPlays:   plays,
		MediaStats:   perItem,
	}

	sess, err := r.sessions.GetByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("stats: load session: %w", err)
	}
	if sess != nil {
		t := sess.LastActiveAt
		stats.LastActive = &t
	}

	return stats, nil
}
