package model

import "time"

// OrderRequest is the input to the order processing workflow. It is
// immutable once submitted; the orchestration instance is keyed by the
// order id assigned at start.
type OrderRequest struct {
	Name      string  `json:"name"`
	UnitCost  float64 `json:"unitCost"`
	TotalCost float64 `json:"totalCost"`
	Quantity  int     `json:"quantity"`
}

// OrderResult is the terminal outcome of a workflow run. The reason for
// a failed run is carried in the notification trail, not here.
type OrderResult struct {
	Processed bool `json:"processed"`
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
	ApprovalTimedOut ApprovalStatus = "TIMED_OUT"
)

// Terminal reports whether no further status transition is permitted.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected || s == ApprovalTimedOut
}

// ApprovalRequest is a pending or resolved human decision for one order.
// Records are never deleted; resolved rows are retained as audit history.
type ApprovalRequest struct {
	OrderID     string         `json:"orderId"`
	OrderName   string         `json:"orderName"`
	TotalCost   float64        `json:"totalCost"`
	Quantity    int            `json:"quantity"`
	Status      ApprovalStatus `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	ProcessedAt *time.Time     `json:"processedAt,omitempty"`
	ProcessedBy string         `json:"processedBy,omitempty"`
	Comments    string         `json:"comments,omitempty"`
}

// ApprovalDecision is the event delivered to the waiting workflow
// instance when a human approves or rejects an order. Exactly one
// decision is published per order.
type ApprovalDecision struct {
	Approved  bool      `json:"approved"`
	DecidedBy string    `json:"decidedBy"`
	Comments  string    `json:"comments"`
	DecidedAt time.Time `json:"decidedAt"`
}

type InventoryRequest struct {
	RequestID string `json:"requestId"`
	ItemName  string `json:"itemName"`
	Quantity  int    `json:"quantity"`
}

type InventoryResult struct {
	Success bool `json:"success"`
}

type PaymentRequest struct {
	RequestID string  `json:"requestId"`
	ItemName  string  `json:"itemName"`
	Quantity  int     `json:"quantity"`
	Amount    float64 `json:"amount"`
}

type Notification struct {
	Message string `json:"message"`
}

// AuditEvent is one entry in a workflow's audit trail, readable through
// the audit_log query without a separate store.
type AuditEvent struct {
	At      time.Time      `json:"at"`
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}
