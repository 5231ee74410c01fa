// Package api is the HTTP gateway: order submission and status on one
// side, the approval decision surface on the other. Decisions are
// recorded in the store first and then signalled to the waiting
// workflow; if the signal fails the mutation is kept and the caller is
// told to expect a delayed resume.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap"

	"order-approval-service/internal/approvals"
	"order-approval-service/internal/model"
	"order-approval-service/internal/workflows"
)

// TemporalClient is the slice of client.Client the gateway uses.
// Narrowed so handler tests can run against a fake.
type TemporalClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	SignalWorkflow(ctx context.Context, workflowID string, runID string, signalName string, arg interface{}) error
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type Server struct {
	temporal TemporalClient
	store    approvals.Store
	logger   *zap.Logger
}

func NewServer(temporal TemporalClient, store approvals.Store, logger *zap.Logger) *Server {
	return &Server{temporal: temporal, store: store, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/orders", s.createOrder)
	r.Get("/orders/{orderId}", s.getOrderStatus)
	r.Get("/orders/{orderId}/audit", s.getOrderAudit)

	r.Get("/approvals", s.listPendingApprovals)
	r.Get("/approvals/{orderId}", s.getApproval)
	r.Post("/approvals/{orderId}/approve", func(w http.ResponseWriter, r *http.Request) {
		s.decide(w, r, true)
	})
	r.Post("/approvals/{orderId}/reject", func(w http.ResponseWriter, r *http.Request) {
		s.decide(w, r, false)
	})

	return r
}

type createOrderRequest struct {
	OrderID   string  `json:"orderId,omitempty"`
	Name      string  `json:"name"`
	UnitCost  float64 `json:"unitCost,omitempty"`
	TotalCost float64 `json:"totalCost"`
	Quantity  int     `json:"quantity"`
}

type createOrderResponse struct {
	OrderID    string `json:"orderId"`
	InstanceID string `json:"instanceId"`
	RunID      string `json:"runId"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Name == "" || req.Quantity < 1 || req.TotalCost <= 0 {
		writeError(w, http.StatusBadRequest, "name, quantity >= 1 and totalCost > 0 are required")
		return
	}

	orderID := req.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}

	order := model.OrderRequest{
		Name:      req.Name,
		UnitCost:  req.UnitCost,
		TotalCost: req.TotalCost,
		Quantity:  req.Quantity,
	}

	// One orchestration instance per order id: a duplicate submit is
	// rejected instead of spawning a second concurrent instance.
	opts := client.StartWorkflowOptions{
		ID:                                       workflows.WorkflowID(orderID),
		TaskQueue:                                workflows.TaskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
		WorkflowIDReusePolicy:                    enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	run, err := s.temporal.ExecuteWorkflow(ctx, opts, workflows.OrderProcessingWorkflow, order)
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			writeError(w, http.StatusConflict, "order "+orderID+" is already being processed")
			return
		}
		s.logger.Error("starting order workflow failed", zap.String("order", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("order workflow started",
		zap.String("order", orderID), zap.String("runId", run.GetRunID()))

	writeJSONStatus(w, http.StatusAccepted, createOrderResponse{
		OrderID:    orderID,
		InstanceID: run.GetID(),
		RunID:      run.GetRunID(),
	})
}

func (s *Server) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	qr, err := s.temporal.QueryWorkflow(ctx, workflows.WorkflowID(orderID), "", "status")
	if err != nil {
		s.respondQueryError(w, orderID, err)
		return
	}

	var status string
	if err := qr.Get(&status); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, map[string]string{"orderId": orderID, "status": status})
}

func (s *Server) getOrderAudit(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	qr, err := s.temporal.QueryWorkflow(ctx, workflows.WorkflowID(orderID), "", "audit_log")
	if err != nil {
		s.respondQueryError(w, orderID, err)
		return
	}

	var events []model.AuditEvent
	if err := qr.Get(&events); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, events)
}

func (s *Server) listPendingApprovals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.ListPending(r.Context()))
}

func (s *Server) getApproval(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	approval, err := s.store.Get(r.Context(), orderID)
	if err != nil {
		s.respondStoreError(w, orderID, err)
		return
	}

	writeJSON(w, approval)
}

type decisionRequest struct {
	ApprovedBy string `json:"approvedBy,omitempty"`
	Comments   string `json:"comments,omitempty"`
}

type decisionResponse struct {
	Message  string                 `json:"message"`
	Approval *model.ApprovalRequest `json:"approval,omitempty"`
}

func (s *Server) decide(w http.ResponseWriter, r *http.Request, approved bool) {
	orderID := chi.URLParam(r, "orderId")

	// Body is optional; an empty decision defaults the actor downstream.
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	approval, err := s.store.Decide(r.Context(), orderID, approved, req.ApprovedBy, req.Comments)
	if err != nil {
		s.respondStoreError(w, orderID, err)
		return
	}

	decision := model.ApprovalDecision{
		Approved:  approved,
		DecidedBy: req.ApprovedBy,
		Comments:  req.Comments,
		DecidedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := s.temporal.SignalWorkflow(ctx, workflows.WorkflowID(orderID), "", workflows.ApprovalDecisionSignal, decision); err != nil {
		// The decision is durably recorded; only the wake-up failed.
		// Surfaced as 5xx so the caller knows the workflow may not
		// resume immediately. No rollback.
		s.logger.Error("signalling workflow failed after recording decision",
			zap.String("order", orderID), zap.Bool("approved", approved), zap.Error(err))
		writeError(w, http.StatusBadGateway,
			"decision recorded, but the order workflow could not be signalled and may not resume immediately")
		return
	}

	verb := "rejected"
	if approved {
		verb = "approved"
	}
	s.logger.Info("approval decision processed",
		zap.String("order", orderID), zap.String("decision", verb), zap.String("by", req.ApprovedBy))

	writeJSON(w, decisionResponse{
		Message:  "Order " + orderID + " has been " + verb,
		Approval: approval,
	})
}

func (s *Server) respondStoreError(w http.ResponseWriter, orderID string, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "approval request for order "+orderID+" not found")
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrExpired):
		writeError(w, http.StatusBadRequest, "approval request for order "+orderID+" has expired")
	default:
		s.logger.Error("approval store error", zap.String("order", orderID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "approval store unavailable, retry later")
	}
}

func (s *Server) respondQueryError(w http.ResponseWriter, orderID string, err error) {
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, "order "+orderID+" not found")
		return
	}
	s.logger.Error("workflow query failed", zap.String("order", orderID), zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
