package workflows

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"order-approval-service/internal/activities"
	"order-approval-service/internal/approvals"
	"order-approval-service/internal/model"
)

const TaskQueue = "ORDER_TASK_QUEUE"

// ApprovalDecisionSignal carries the model.ApprovalDecision published by
// the gateway to the waiting workflow instance. Exactly one decision is
// published per order.
const ApprovalDecisionSignal = "approval-decision"

// ApprovalThreshold is the total cost at or above which an order needs
// a manager decision before payment.
const ApprovalThreshold = 1000.0

// ApprovalWindow mirrors the store's expiry window; the in-workflow
// timer and the record's expires_at are always the same duration.
const ApprovalWindow = approvals.Window

const workflowIDPrefix = "order-"

// WorkflowID maps an order id to its orchestration instance id. One
// instance exists per order; starts with a duplicate id are rejected by
// the id reuse policy.
func WorkflowID(orderID string) string {
	return workflowIDPrefix + orderID
}

func orderIDFromWorkflowID(workflowID string) string {
	return strings.TrimPrefix(workflowID, workflowIDPrefix)
}

// Workflow phases, readable through the "status" query.
const (
	PhaseCreated               = "CREATED"
	PhaseReservingInventory    = "RESERVING_INVENTORY"
	PhaseInsufficientInventory = "INSUFFICIENT_INVENTORY"
	PhaseAwaitingApproval      = "AWAITING_APPROVAL"
	PhaseRejected              = "REJECTED"
	PhaseTimedOut              = "TIMED_OUT"
	PhaseProcessingPayment     = "PROCESSING_PAYMENT"
	PhasePaymentFailed         = "PAYMENT_FAILED"
	PhaseUpdatingInventory     = "UPDATING_INVENTORY"
	PhaseCommitFailed          = "INVENTORY_COMMIT_FAILED"
	PhaseFailed                = "FAILED"
	PhaseCompleted             = "COMPLETED"
)

type workflowState struct {
	Order model.OrderRequest `json:"order"`
	Phase string             `json:"phase"`
	Audit []model.AuditEvent `json:"audit,omitempty"`
}

// OrderProcessingWorkflow runs one order from submission to a terminal
// result: notify, reserve inventory, conditionally wait for a human
// approval decision against a 24-hour timer, process payment, commit
// the reservation, notify the outcome.
//
// The workflow is strictly sequential; the only parallelism is the
// decision-signal vs timer race while awaiting approval. Every terminal
// path emits exactly one outcome notification.
func OrderProcessingWorkflow(ctx workflow.Context, order model.OrderRequest) (model.OrderResult, error) {
	logger := workflow.GetLogger(ctx)
	orderID := orderIDFromWorkflowID(workflow.GetInfo(ctx).WorkflowExecution.ID)
	logger.Info("order workflow started", "orderID", orderID, "totalCost", order.TotalCost)

	state := &workflowState{
		Order: order,
		Phase: PhaseCreated,
		Audit: make([]model.AuditEvent, 0),
	}

	appendAudit := func(kind, message string, data map[string]any) {
		state.Audit = append(state.Audit, model.AuditEvent{
			At:      workflow.Now(ctx),
			Kind:    kind,
			Message: message,
			Data:    data,
		})
	}

	// Queries let the API read phase and audit trail without a separate DB.
	_ = workflow.SetQueryHandler(ctx, "status", func() (string, error) {
		return state.Phase, nil
	})
	_ = workflow.SetQueryHandler(ctx, "order", func() (model.OrderRequest, error) {
		return state.Order, nil
	})
	_ = workflow.SetQueryHandler(ctx, "audit_log", func() ([]model.AuditEvent, error) {
		return state.Audit, nil
	})

	// Retries for transient collaborator failures belong to the
	// substrate; the orchestration logic itself never retries.
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var a *activities.Activities

	// Fire-and-forget: a failed notification never aborts the order.
	sendNotification := func(message string) {
		if err := workflow.ExecuteActivity(ctx, a.Notify, model.Notification{Message: message}).Get(ctx, nil); err != nil {
			logger.Warn("notification failed", "error", err)
		}
	}

	fail := func(phase, kind, message string) (model.OrderResult, error) {
		state.Phase = phase
		appendAudit(kind, message, nil)
		sendNotification(message)
		return model.OrderResult{Processed: false}, nil
	}

	sendNotification(fmt.Sprintf("Received order %s for %d %s at $%.2f", orderID, order.Quantity, order.Name, order.TotalCost))
	appendAudit("ORDER_RECEIVED", "order received", map[string]any{"name": order.Name, "quantity": order.Quantity})

	// Inventory always gates first: an unfulfillable order never reaches
	// the approval queue, whatever it costs.
	state.Phase = PhaseReservingInventory
	var reservation model.InventoryResult
	err := workflow.ExecuteActivity(ctx, a.ReserveInventory, model.InventoryRequest{
		RequestID: orderID,
		ItemName:  order.Name,
		Quantity:  order.Quantity,
	}).Get(ctx, &reservation)
	if err != nil {
		logger.Error("inventory reservation failed", "error", err)
		return fail(PhaseFailed, "ERROR",
			fmt.Sprintf("Order %s failed: inventory service unavailable", orderID))
	}
	if !reservation.Success {
		return fail(PhaseInsufficientInventory, "INSUFFICIENT_INVENTORY",
			fmt.Sprintf("Insufficient inventory for %s", order.Name))
	}
	appendAudit("INVENTORY_RESERVED", "inventory reserved", map[string]any{"quantity": order.Quantity})

	if order.TotalCost >= ApprovalThreshold {
		state.Phase = PhaseAwaitingApproval

		var approval model.ApprovalRequest
		if err := workflow.ExecuteActivity(ctx, a.RequestApproval, orderID, order).Get(ctx, &approval); err != nil {
			logger.Error("approval request failed", "error", err)
			return fail(PhaseFailed, "ERROR",
				fmt.Sprintf("Order %s failed: approval system unavailable", orderID))
		}
		appendAudit("APPROVAL_REQUESTED", "approval requested", map[string]any{"expiresAt": approval.ExpiresAt})

		sendNotification(fmt.Sprintf("Order %s requires approval ($%.2f >= $%.2f). Waiting for manager approval...",
			orderID, order.TotalCost, ApprovalThreshold))

		// Race the decision signal against the approval window. The
		// loser must have no observable effect: the timer is cancelled
		// once a decision arrives, and the timeout activity only flips
		// the record if it is still Pending.
		var decision model.ApprovalDecision
		timedOut := false

		timerCtx, cancelTimer := workflow.WithCancel(ctx)
		timer := workflow.NewTimer(timerCtx, ApprovalWindow)
		decisionCh := workflow.GetSignalChannel(ctx, ApprovalDecisionSignal)

		selector := workflow.NewSelector(ctx)
		selector.AddReceive(decisionCh, func(c workflow.ReceiveChannel, more bool) {
			c.Receive(ctx, &decision)
		})
		selector.AddFuture(timer, func(f workflow.Future) {
			if f.Get(timerCtx, nil) == nil {
				timedOut = true
			}
		})
		selector.Select(ctx)

		if timedOut {
			var wonRace bool
			if err := workflow.ExecuteActivity(ctx, a.HandleApprovalTimeout, orderID).Get(ctx, &wonRace); err != nil {
				logger.Error("approval timeout handling failed", "error", err)
			}
			appendAudit("APPROVAL_TIMEOUT", "approval window elapsed", map[string]any{"recordTimedOut": wonRace})
			return fail(PhaseTimedOut, "TIMED_OUT",
				fmt.Sprintf("Order %s approval timed out after 24 hours. Order cancelled and inventory released.", orderID))
		}
		cancelTimer()

		decidedBy := decision.DecidedBy
		if decidedBy == "" {
			decidedBy = "manager"
		}
		appendAudit("APPROVAL_DECISION", "decision received", map[string]any{
			"approved": decision.Approved, "decidedBy": decidedBy,
		})

		if !decision.Approved {
			reason := decision.Comments
			if reason == "" {
				reason = "No reason provided"
			}
			return fail(PhaseRejected, "REJECTED",
				fmt.Sprintf("Order %s was rejected by %s. Reason: %s", orderID, decidedBy, reason))
		}

		sendNotification(fmt.Sprintf("Order %s was approved by %s. Proceeding with payment...", orderID, decidedBy))
	}

	charge := model.PaymentRequest{
		RequestID: orderID,
		ItemName:  order.Name,
		Quantity:  order.Quantity,
		Amount:    order.TotalCost,
	}

	state.Phase = PhaseProcessingPayment
	if err := workflow.ExecuteActivity(ctx, a.ProcessPayment, charge).Get(ctx, nil); err != nil {
		logger.Error("payment failed", "error", err)
		return fail(PhasePaymentFailed, "PAYMENT_FAILED",
			fmt.Sprintf("Payment for order %s failed. No charge was applied.", orderID))
	}
	appendAudit("PAYMENT_PROCESSED", "payment processed", map[string]any{"amount": order.TotalCost})

	state.Phase = PhaseUpdatingInventory
	if err := workflow.ExecuteActivity(ctx, a.UpdateInventory, charge).Get(ctx, nil); err != nil {
		logger.Error("inventory commit failed after charge", "error", err)
		// The refund here is a notification only; no compensating
		// reversal of the charge is issued. Known gap, kept visible.
		return fail(PhaseCommitFailed, "INVENTORY_COMMIT_FAILED",
			fmt.Sprintf("Order %s failed! You are now getting a refund", orderID))
	}
	appendAudit("INVENTORY_COMMITTED", "reservation committed", nil)

	state.Phase = PhaseCompleted
	appendAudit("DONE", "order completed", nil)
	sendNotification(fmt.Sprintf("Order %s has completed!", orderID))
	return model.OrderResult{Processed: true}, nil
}
