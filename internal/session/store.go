package session

import (
	"context"
	"time"
)

// ViewSession is the exclusive-access lease for one assignment. At most
// one record exists per assignment; the arbiter enforces that invariant.
type ViewSession struct {
	AssignmentID int64     `json:"assignment_id"`
	Credential   string    `json:"credential"`
	LastActiveAt time.Time `json:"last_active_at"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
}

// Store defines how view sessions are stored and retrieved. A miss is
// (nil, nil); errors are reserved for storage faults.
type Store interface {
	GetByAssignment(ctx context.Context, assignmentID int64) (*ViewSession, error)
	GetByCredential(ctx context.Context, credential string) (*ViewSession, error)

	// Upsert writes the single record for s.AssignmentID, replacing any
	// existing record and retiring its credential.
	Upsert(ctx context.Context, s ViewSession) error

	// DeleteByCredential removes the matching record. Deleting an unknown
	// credential is not an error.
	DeleteByCredential(ctx context.Context, credential string) error
}
