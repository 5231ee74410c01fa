// Package approvals owns ApprovalRequest records. It is the only writer
// of their status field; the workflow observes decisions through the
// signal channel or the timeout race, never by polling the store.
package approvals

import (
	"context"
	"time"

	"order-approval-service/internal/model"
)

// Window is the fixed approval window. A pending request auto-expires
// this long after creation.
const Window = 24 * time.Hour

// TimeoutComment is recorded on requests that expire without a decision.
const TimeoutComment = "Approval request timed out after 24 hours"

// Store persists approval requests keyed by order id.
//
// Status transitions are Pending -> {Approved, Rejected, TimedOut} and
// happen exactly once, enforced with a compare-and-set on status. Two
// independent actors race for that transition: the human decision path
// (Decide) and the workflow timeout path (MarkTimedOut).
type Store interface {
	// CreatePending inserts a new Pending request with
	// expiry = now + Window. A record that already exists for the
	// order id is never overwritten; the call fails with
	// model.ErrConflict instead.
	CreatePending(ctx context.Context, orderID, orderName string, totalCost float64, quantity int) (*model.ApprovalRequest, error)

	// Get returns the request for orderID or model.ErrNotFound.
	Get(ctx context.Context, orderID string) (*model.ApprovalRequest, error)

	// ListPending returns Pending requests newest-first. Backing-store
	// failures degrade to an empty list; they never propagate.
	ListPending(ctx context.Context) []model.ApprovalRequest

	// Decide resolves a pending request. Fails with model.ErrNotFound,
	// model.ErrConflict (already decided), or model.ErrExpired (past
	// expiry while still Pending; the record is flipped to TimedOut as
	// a side effect of the lazy expiry check, there is no sweeper).
	Decide(ctx context.Context, orderID string, approved bool, actor, comments string) (*model.ApprovalRequest, error)

	// MarkTimedOut transitions the request to TimedOut only if it is
	// still Pending, and reports whether this call won the race. A
	// request already decided is left untouched with timedOut=false.
	MarkTimedOut(ctx context.Context, orderID string) (timedOut bool, err error)
}
