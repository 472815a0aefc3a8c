// Package ports declares the interfaces the application services consume.
// Implementations live under infrastructure.
package ports

import (
	"context"

	"carpool-backend/domain/carpool"
)

// StatusFilter narrows a relationship query by carpool status. Negate flips
// the comparison to "status <> Status". A nil *StatusFilter means no filter.
type StatusFilter struct {
	Status carpool.Status
	Negate bool
}

// NonClosed is the filter used by the precondition gates: any membership
// whose carpool is not yet closed blocks creating or joining another one.
func NonClosed() *StatusFilter {
	return &StatusFilter{Status: carpool.StatusClosed, Negate: true}
}

// UserRepository persists users and answers relationship queries over the
// user's partition.
type UserRepository interface {
	// Create stores a new user. An existing name is a conflict.
	Create(ctx context.Context, user carpool.User) error
	// GetByName returns the user or a not-found error.
	GetByName(ctx context.Context, name string) (*carpool.User, error)
	// UpdateLocation replaces the user's coordinates. Missing user is a
	// not-found error.
	UpdateLocation(ctx context.Context, name string, loc carpool.Location) error

	// HostedCarpools returns the membership links where the user is host,
	// optionally filtered by carpool status. consistent selects a strongly
	// consistent read on the base table; the mutating paths require it.
	HostedCarpools(ctx context.Context, name string, filter *StatusFilter, consistent bool) ([]carpool.Membership, error)
	// ParticipatedCarpools is the participant-role counterpart of
	// HostedCarpools.
	ParticipatedCarpools(ctx context.Context, name string, filter *StatusFilter, consistent bool) ([]carpool.Membership, error)
}

// CarpoolRepository issues the conditional and transactional writes that
// drive the carpool lifecycle, plus the read paths.
type CarpoolRepository interface {
	// Create atomically writes the carpool row and the host membership row.
	Create(ctx context.Context, c *carpool.Carpool) error
	// GetByID returns the carpool or a not-found error.
	GetByID(ctx context.Context, id string) (*carpool.Carpool, error)
	// ParticipantCount reads the participant count from the carpool row with
	// a strongly consistent read. Never served by an index: the "exactly one
	// full transition" invariant depends on seeing every prior join.
	ParticipantCount(ctx context.Context, id string) (int, error)
	// AddParticipant transactionally writes the membership row and bumps the
	// participant count from currentCount; when currentCount is
	// MaxParticipants-1 the same write flips the carpool to full. The count
	// update carries a write-time condition on currentCount.
	AddParticipant(ctx context.Context, id, user string, currentCount int) error
	// MarkStarted conditionally flips full -> started, guarded at commit
	// time by status and host.
	MarkStarted(ctx context.Context, id, host string) error
	// Close transactionally flips started -> closed, sets the winner and
	// marks every crew membership row closed (the winner's with
	// IsWinner=true). Guarded at commit time by status and host.
	Close(ctx context.Context, id, host, winner string, crew carpool.Crew) error

	// Crew resolves the host and participants from the membership index in a
	// single query. The index may lag the base table, so the returned crew
	// can be incomplete; callers that need completeness poll.
	Crew(ctx context.Context, id string) (carpool.Crew, error)
	// ListAvailable returns available carpools from the status index,
	// optionally filtered by genre.
	ListAvailable(ctx context.Context, genre string) ([]carpool.Carpool, error)
}

// TableLock serializes table-mutating units of work behind the single global
// advisory lock.
type TableLock interface {
	// Dispatch acquires the lock (retrying a bounded number of times while
	// it is held), runs fn, and always releases before returning fn's
	// result. Contention that outlives the retry budget is a lock-exceeded
	// error.
	Dispatch(ctx context.Context, fn func(ctx context.Context) error) error
}

// CarpoolEvent is a lifecycle notification emitted after a successful
// transition.
type CarpoolEvent struct {
	Type      string `json:"type"`
	CarpoolID string `json:"carpoolId"`
	User      string `json:"user,omitempty"`
	Winner    string `json:"winner,omitempty"`
	At        string `json:"at"`
}

// Lifecycle event types.
const (
	EventCarpoolCreated = "carpool.created"
	EventCarpoolJoined  = "carpool.joined"
	EventCarpoolStarted = "carpool.started"
	EventCarpoolClosed  = "carpool.closed"
)

// EventPublisher publishes lifecycle events. Publishing is best-effort;
// failures never fail the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, event CarpoolEvent) error
}

// MetricsRecorder records operational counters. Best-effort as well.
type MetricsRecorder interface {
	CountOperation(ctx context.Context, operation string, success bool)
	CountLockContention(ctx context.Context, attempts int)
}
