package stats

import (
	"context"
	"time"
)

// Event kinds the frontend reports. Only view_assignment is deduplicated.
const (
	KindViewAssignment = "view_assignment"
	KindMediaPlay      = "media_play"
)

// StatisticEvent is an immutable usage fact tied to one assignment.
type StatisticEvent struct {
	ID           int64
	AssignmentID int64
	EventType    string
	MediaItemID  *int64
	Details      *string
	CreatedAt    time.Time
}

// EventStore persists and aggregates statistic events.
type EventStore interface {
	Insert(ctx context.Context, e StatisticEvent) error

	// CountSince counts events of one kind for an assignment recorded at
	// or after since. A zero since counts everything.
	CountSince(ctx context.Context, assignmentID int64, kind string, since time.Time) (int64, error)

	// CountByItem groups events of one kind by media item, skipping
	// events with no media reference.
	CountByItem(ctx context.Context, assignmentID int64, kind string) (map[int64]int64, error)
}

// Stats is the read-side aggregate for one assignment.
type Stats struct {
	AssignmentID int64           `json:"assignment_id"`
	TotalViews   int64           `json:"total_views"`
	TotalPlays   int64           `json:"total_plays"`
	LastActive   *time.Time      `json:"last_active"`
	MediaStats   map[int64]int64 `json:"media_stats"`
}
