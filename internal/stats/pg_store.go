package stats

import (
	"context"
	"time"

	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/db"
)

// PGStore persists statistic events in Postgres.
type PGStore struct {
	db *db.DB
}

func NewPGStore(db *db.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Insert(ctx context.Context, e StatisticEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO statistic_events
			(assignment_id, event_type, media_item_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.AssignmentID, e.EventType, e.MediaItemID, e.Details, e.CreatedAt)
	return err
}

func (s *PGStore) CountSince(ctx context.Context, assignmentID int64, kind string, since time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM statistic_events
		WHERE assignment_id = $1
		  AND event_type = $2
		  AND created_at >= $3
	`, assignmentID, kind, since).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PGStore) CountByItem(ctx context.Context, assignmentID int64, kind string) (map[int64]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT media_item_id, COUNT(*)
		FROM statistic_events
		WHERE assignment_id = $1
		  AND event_type = $2
		  AND media_item_id IS NOT NULL
		GROUP BY media_item_id
	`, assignmentID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int64)
	for rows.Next() {
		var itemID, count int64
		if err := rows.Scan(&itemID, &count); err != nil {
			return nil, err
		}
		counts[itemID] = count
	}
	return counts, rows.Err()
}
