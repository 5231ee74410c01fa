package inventory_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"order-approval-service/internal/db"
	"order-approval-service/internal/inventory"
)

func newService(t *testing.T) *inventory.SQLiteService {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	return inventory.NewSQLiteService(database.DB, zap.NewNop())
}

func TestReserveAndCommit(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	ok, err := svc.Reserve(ctx, "req-1", "Widget", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.Commit(ctx, "req-1", "Widget", 2, 1500))
}

func TestReserveUnknownItem(t *testing.T) {
	svc := newService(t)

	ok, err := svc.Reserve(context.Background(), "req-1", "Flying Car", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReserveInsufficientStock(t *testing.T) {
	svc := newService(t)

	// Seed migration stocks 10 Doohickeys.
	ok, err := svc.Reserve(context.Background(), "req-1", "Doohickey", 11)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Reserve(context.Background(), "req-2", "Doohickey", 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReserveIsIdempotentPerRequest(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	// A retried reserve for the same request id replaces the previous
	// reservation instead of failing.
	ok, err := svc.Reserve(ctx, "req-1", "Widget", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Reserve(ctx, "req-1", "Widget", 3)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.Commit(ctx, "req-1", "Widget", 3, 2250))
}

func TestCommitWithoutReservation(t *testing.T) {
	svc := newService(t)

	err := svc.Commit(context.Background(), "req-404", "Widget", 1, 750)
	assert.ErrorIs(t, err, inventory.ErrNoReservation)
}

func TestCommitIsSingleUse(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	ok, err := svc.Reserve(ctx, "req-1", "Widget", 1)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.Commit(ctx, "req-1", "Widget", 1, 750))

	err = svc.Commit(ctx, "req-1", "Widget", 1, 750)
	assert.ErrorIs(t, err, inventory.ErrNoReservation)
}

func TestCommitDecrementsStock(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	// Drain the 10 seeded Doohickeys, then the next reserve fails.
	ok, err := svc.Reserve(ctx, "req-1", "Doohickey", 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, svc.Commit(ctx, "req-1", "Doohickey", 10, 100))

	ok, err = svc.Reserve(ctx, "req-2", "Doohickey", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
