package approvals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"order-approval-service/internal/model"
)

// SQLiteStore implements Store on the approvals table created by the
// embedded migrations.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewSQLiteStore(db *sql.DB, logger *zap.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the store's clock. Tests use it to move time past
// the approval window without sleeping.
func (s *SQLiteStore) WithClock(now func() time.Time) *SQLiteStore {
	s.now = now
	return s
}

func (s *SQLiteStore) CreatePending(ctx context.Context, orderID, orderName string, totalCost float64, quantity int) (*model.ApprovalRequest, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approvals (order_id, order_name, total_cost, quantity, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		orderID, orderName, totalCost, quantity, string(req.Status),
		formatTime(created), formatTime(req.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("approval for order %s already exists: %w", orderID, model.ErrConflict)
		}
		return nil, fmt.Errorf("inserting approval: %w", errors.Join(err, model.ErrUnavailable))
	}

	return req, nil
}

func (s *SQLiteStore) Get(ctx context.Context, orderID string) (*model.ApprovalRequest, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM approvals WHERE order_id = ?`, orderID)
	req, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("approval for order %s: %w", orderID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading approval: %w", errors.Join(err, model.ErrUnavailable))
	}
	return req, nil
}

func (s *SQLiteStore) ListPending(ctx context.Context) []model.ApprovalRequest {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` FROM approvals WHERE status = ? ORDER BY created_at DESC`,
		string(model.ApprovalPending),
	)
	if err != nil {
		s.logger.Warn("pending approvals query failed, returning empty list", zap.Error(err))
		return []model.ApprovalRequest{}
	}
	defer rows.Close()

	out := []model.ApprovalRequest{}
	for rows.Next() {
		req, err := scanApproval(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable approval row", zap.Error(err))
			continue
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("pending approvals iteration failed, returning empty list", zap.Error(err))
		return []model.ApprovalRequest{}
	}
	return out
}

func (s *SQLiteStore) Decide(ctx context.Context, orderID string, approved bool, actor, comments string) (*model.ApprovalRequest, error) {
	req, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if req.Status != model.ApprovalPending {
		return nil, fmt.Errorf("approval for order %s is already %s: %w", orderID, req.Status, model.ErrConflict)
	}

	now := s.now()
	if now.After(req.ExpiresAt) {
		// Lazy expiry: no sweeper runs, so an expired-but-still-pending
		// record is flipped here. The CAS keeps this safe against a
		// concurrent timeout activity doing the same.
		if _, err := s.casStatus(ctx, orderID, model.ApprovalTimedOut, now, "", TimeoutComment); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("approval for order %s: %w", orderID, model.ErrExpired)
	}

	status := model.ApprovalRejected
	if approved {
		status = model.ApprovalApproved
	}

	won, err := s.casStatus(ctx, orderID, status, now, actor, comments)
	if err != nil {
		return nil, err
	}
	if !won {
		current, err := s.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("approval for order %s is already %s: %w", orderID, current.Status, model.ErrConflict)
	}

	return s.Get(ctx, orderID)
}

func (s *SQLiteStore) MarkTimedOut(ctx context.Context, orderID string) (bool, error) {
	return s.casStatus(ctx, orderID, model.ApprovalTimedOut, s.now(), "", TimeoutComment)
}

// casStatus is the single mutation path for approval status: the UPDATE
// only applies while the row is still Pending, so whichever of the
// decision and timeout paths runs second is a no-op.
func (s *SQLiteStore) casStatus(ctx context.Context, orderID string, status model.ApprovalStatus, processedAt time.Time, actor, comments string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE approvals
		SET status = ?, processed_at = ?, processed_by = ?, comments = ?
		WHERE order_id = ? AND status = ?`,
		string(status), formatTime(processedAt), nullIfEmpty(actor), nullIfEmpty(comments),
		orderID, string(model.ApprovalPending),
	)
	if err != nil {
		return false, fmt.Errorf("updating approval status: %w", errors.Join(err, model.ErrUnavailable))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating approval status: %w", errors.Join(err, model.ErrUnavailable))
	}
	return n == 1, nil
}

const selectColumns = `SELECT order_id, order_name, total_cost, quantity, status, created_at, expires_at, processed_at, processed_by, comments`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApproval(row rowScanner) (*model.ApprovalRequest, error) {
	var (
		req         model.ApprovalRequest
		status      string
		createdAt   string
		expiresAt   string
		processedAt sql.NullString
		processedBy sql.NullString
		comments    sql.NullString
	)
	err := row.Scan(&req.OrderID, &req.OrderName, &req.TotalCost, &req.Quantity,
		&status, &createdAt, &expiresAt, &processedAt, &processedBy, &comments)
	if err != nil {
		return nil, err
	}

	req.Status = model.ApprovalStatus(status)
	if req.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if req.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	if processedAt.Valid {
		t, err := parseTime(processedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing processed_at: %w", err)
		}
		req.ProcessedAt = &t
	}
	req.ProcessedBy = processedBy.String
	req.Comments = comments.String
	return &req, nil
}

// Fixed-width fraction keeps lexicographic ORDER BY consistent with
// chronological order; RFC3339Nano trims trailing zeros and does not.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
