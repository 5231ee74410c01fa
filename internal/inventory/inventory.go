// Package inventory is the stock ledger behind the reserve and commit
// activities. Reserve is a non-binding availability check that records
// the reservation; Commit finalizes it and decrements stock.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNoReservation is returned by Commit when no uncommitted
// reservation exists for the request id.
var ErrNoReservation = errors.New("no open reservation")

// ErrInsufficientStock is returned by Commit when stock ran out between
// reservation and commit.
var ErrInsufficientStock = errors.New("insufficient stock")

// Service is the collaborator contract the activities depend on.
type Service interface {
	// Reserve reports whether quantity units of item are available and,
	// if so, records a reservation keyed by requestID. Re-reserving the
	// same request id replaces the previous reservation, so a retried
	// activity is safe.
	Reserve(ctx context.Context, requestID, itemName string, quantity int) (bool, error)

	// Commit finalizes the reservation and decrements stock.
	Commit(ctx context.Context, requestID, itemName string, quantity int, cost float64) error
}

// SQLiteService implements Service on the inventory and reservations
// tables created by the embedded migrations.
type SQLiteService struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteService(db *sql.DB, logger *zap.Logger) *SQLiteService {
	return &SQLiteService{db: db, logger: logger}
}

func (s *SQLiteService) Reserve(ctx context.Context, requestID, itemName string, quantity int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning reserve tx: %w", err)
	}
	defer tx.Rollback()

	var stock int
	err = tx.QueryRowContext(ctx, `SELECT quantity FROM inventory WHERE item_name = ?`, itemName).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Info("reserve failed, unknown item", zap.String("item", itemName))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading stock: %w", err)
	}
	if stock < quantity {
		s.logger.Info("reserve failed, insufficient stock",
			zap.String("item", itemName), zap.Int("stock", stock), zap.Int("requested", quantity))
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (request_id, item_name, quantity, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (request_id) DO UPDATE SET item_name = excluded.item_name, quantity = excluded.quantity`,
		requestID, itemName, quantity, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("recording reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing reserve tx: %w", err)
	}

	s.logger.Info("reserved inventory",
		zap.String("request", requestID), zap.String("item", itemName), zap.Int("quantity", quantity))
	return true, nil
}

func (s *SQLiteService) Commit(ctx context.Context, requestID, itemName string, quantity int, cost float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning commit tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE reservations SET committed = 1 WHERE request_id = ? AND committed = 0`, requestID)
	if err != nil {
		return fmt.Errorf("closing reservation: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("closing reservation: %w", err)
	} else if n == 0 {
		return fmt.Errorf("request %s: %w", requestID, ErrNoReservation)
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE inventory SET quantity = quantity - ? WHERE item_name = ? AND quantity >= ?`,
		quantity, itemName, quantity)
	if err != nil {
		return fmt.Errorf("decrementing stock: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("decrementing stock: %w", err)
	} else if n == 0 {
		return fmt.Errorf("item %s: %w", itemName, ErrInsufficientStock)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing inventory tx: %w", err)
	}

	s.logger.Info("committed inventory",
		zap.String("request", requestID), zap.String("item", itemName),
		zap.Int("quantity", quantity), zap.Float64("cost", cost))
	return nil
}
