// Package activities holds the workflow's external-collaborator calls.
// Collaborators are injected explicitly so tests can swap in fakes. The
// activities themselves do no retrying; that belongs to the workflow's
// retry policy.
package activities

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"order-approval-service/internal/approvals"
	"order-approval-service/internal/inventory"
	"order-approval-service/internal/model"
	"order-approval-service/internal/notify"
	"order-approval-service/internal/payment"
)

// Error types carried on activity failures so the workflow can tell a
// modeled commit failure from an infrastructure error.
const (
	ErrTypeInventoryCommit = "InventoryCommitFailed"
	ErrTypePaymentFailed   = "PaymentFailed"
)

type Activities struct {
	Store     approvals.Store
	Inventory inventory.Service
	Payments  payment.Processor
	Notifier  notify.Notifier
	Logger    *zap.Logger
}

// Notify delivers a human-readable message. Best-effort: a sink failure
// is logged and swallowed so it can never abort the workflow.
func (a *Activities) Notify(ctx context.Context, n model.Notification) error {
	if err := a.Notifier.Notify(ctx, n.Message); err != nil {
		a.Logger.Warn("notification delivery failed", zap.String("message", n.Message), zap.Error(err))
	}
	return nil
}

// ReserveInventory checks availability and places a reservation.
// Insufficient stock is a business outcome, reported in the result
// payload rather than as an error.
func (a *Activities) ReserveInventory(ctx context.Context, req model.InventoryRequest) (model.InventoryResult, error) {
	ok, err := a.Inventory.Reserve(ctx, req.RequestID, req.ItemName, req.Quantity)
	if err != nil {
		return model.InventoryResult{}, err
	}
	return model.InventoryResult{Success: ok}, nil
}

// UpdateInventory commits the reservation placed earlier. A modeled
// commit failure (lost reservation, stock raced away) is non-retryable;
// the workflow turns it into the refund path.
func (a *Activities) UpdateInventory(ctx context.Context, req model.PaymentRequest) error {
	err := a.Inventory.Commit(ctx, req.RequestID, req.ItemName, req.Quantity, req.Amount)
	if errors.Is(err, inventory.ErrNoReservation) || errors.Is(err, inventory.ErrInsufficientStock) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInventoryCommit, err)
	}
	return err
}

// ProcessPayment charges the customer. Failure aborts the remaining
// workflow steps.
func (a *Activities) ProcessPayment(ctx context.Context, req model.PaymentRequest) error {
	if err := a.Payments.Charge(ctx, req.RequestID, req.ItemName, req.Quantity, req.Amount); err != nil {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypePaymentFailed, err)
	}
	return nil
}

// RequestApproval creates the Pending approval record for an order that
// crossed the threshold.
func (a *Activities) RequestApproval(ctx context.Context, orderID string, order model.OrderRequest) (model.ApprovalRequest, error) {
	req, err := a.Store.CreatePending(ctx, orderID, order.Name, order.TotalCost, order.Quantity)
	if err != nil {
		return model.ApprovalRequest{}, err
	}
	a.Logger.Info("approval requested",
		zap.String("order", orderID),
		zap.Float64("totalCost", order.TotalCost),
		zap.Time("expiresAt", req.ExpiresAt))
	return *req, nil
}

// HandleApprovalTimeout closes the approval window from the workflow's
// timer path. The store-side compare-and-set guards against a decision
// landing concurrently with the timer; losing the race is not an error.
func (a *Activities) HandleApprovalTimeout(ctx context.Context, orderID string) (bool, error) {
	timedOut, err := a.Store.MarkTimedOut(ctx, orderID)
	if err != nil {
		return false, err
	}
	if timedOut {
		a.Logger.Warn("approval timed out", zap.String("order", orderID))
	} else {
		a.Logger.Info("approval already processed before timeout", zap.String("order", orderID))
	}
	return timedOut, nil
}
