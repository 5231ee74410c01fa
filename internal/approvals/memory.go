package approvals

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"order-approval-service/internal/model"
)

// MemoryStore is an in-process Store with the same transition contract
// as the sqlite implementation. Used by tests and as a fake behind the
// gateway in workflow-environment runs.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]*model.ApprovalRequest
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		recs: make(map[string]*model.ApprovalRequest),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) CreatePending(_ context.Context, orderID, orderName string, totalCost float64, quantity int) (*model.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recs[orderID]; ok {
		return nil, fmt.Errorf("approval for order %s already exists: %w", orderID, model.ErrConflict)
	}

	created := s.now()
	req := &model.ApprovalRequest{
		OrderID:   orderID,
		OrderName: orderName,
		TotalCost: totalCost,
		Quantity:  quantity,
		Status:    model.ApprovalPending,
		CreatedAt: created,
		ExpiresAt: created.Add(Window),
	}
	s.recs[orderID] = req

	cp := *req
	return &cp, nil
}

func (s *MemoryStore) Get(_ context.Context, orderID string) (*model.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.recs[orderID]
	if !ok {
		return nil, fmt.Errorf("approval for order %s: %w", orderID, model.ErrNotFound)
	}
	cp := *req
	return &cp, nil
}

func (s *MemoryStore) ListPending(_ context.Context) []model.ApprovalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.ApprovalRequest{}
	for _, req := range s.recs {
		if req.Status == model.ApprovalPending {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *MemoryStore) Decide(_ context.Context, orderID string, approved bool, actor, comments string) (*model.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.recs[orderID]
	if !ok {
		return nil, fmt.Errorf("approval for order %s: %w", orderID, model.ErrNotFound)
	}
	if req.Status != model.ApprovalPending {
		return nil, fmt.Errorf("approval for order %s is already %s: %w", orderID, req.Status, model.ErrConflict)
	}

	now := s.now()
	if now.After(req.ExpiresAt) {
		req.Status = model.ApprovalTimedOut
		req.ProcessedAt = &now
		req.Comments = TimeoutComment
		return nil, fmt.Errorf("approval for order %s: %w", orderID, model.ErrExpired)
	}

	req.Status = model.ApprovalRejected
	if approved {
		req.Status = model.ApprovalApproved
	}
	req.ProcessedAt = &now
	req.ProcessedBy = actor
	req.Comments = comments

	cp := *req
	return &cp, nil
}

func (s *MemoryStore) MarkTimedOut(_ context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.recs[orderID]
	if !ok || req.Status != model.ApprovalPending {
		return false, nil
	}

	now := s.now()
	req.Status = model.ApprovalTimedOut
	req.ProcessedAt = &now
	req.Comments = TimeoutComment
	return true, nil
}
