// Package idempotency implements the duplicate guard: an atomic
// insert-if-absent claim keyed by event id, with time-based expiry.
//
// A record's existence means the event was claimed, not that business
// processing completed. Once a record expires, a replayed duplicate with the
// same event id is treated as new again; replay is expected to happen well
// within the TTL window.
package idempotency

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// DefaultTTL is the default record lifetime.
const DefaultTTL = 7 * 24 * time.Hour

// ErrUnavailable reports that a claim could not be evaluated. Callers must
// treat the affected envelope as failed; an unavailable store is never
// interpreted as "new" since that would disable the guard.
var ErrUnavailable = errors.New("idempotency store unavailable")

// Outcome of a claim attempt.
type Outcome int

const (
	// New means the claim was inserted: this delivery owns the event.
	New Outcome = iota
	// Duplicate means a live record already exists: the event was claimed
	// by an earlier delivery and must not be reprocessed.
	Duplicate
)

func (o Outcome) String() string {
	if o == Duplicate {
		return "duplicate"
	}
	return "new"
}

// Record is the persisted proof of a prior claim.
type Record struct {
	EventID   string `dynamodbav:"event_id"`
	OrderID   string `dynamodbav:"order_id"`
	CreatedAt string `dynamodbav:"created_at"`
	// ExpiresAt is epoch seconds; the store removes the record once it elapses.
	ExpiresAt int64 `dynamodbav:"expires_at"`
}

// Store is the claim contract. Claim atomically inserts a record for eventID
// unless a live one exists, returning New or Duplicate accordingly. Any
// transport or storage error surfaces as ErrUnavailable.
type Store interface {
	Claim(ctx context.Context, eventID, orderID string, createdAt time.Time) (Outcome, error)
}
