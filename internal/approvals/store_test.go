package approvals_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"order-approval-service/internal/approvals"
	"order-approval-service/internal/db"
	"order-approval-service/internal/model"
)

// fakeClock lets tests move time past the approval window.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newSQLiteStore(t *testing.T, clock *fakeClock) approvals.Store {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "approvals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	return approvals.NewSQLiteStore(database.DB, zap.NewNop()).WithClock(clock.now)
}

func newMemoryStore(t *testing.T, clock *fakeClock) approvals.Store {
	t.Helper()
	return approvals.NewMemoryStore().WithClock(clock.now)
}

// Both implementations must satisfy the same transition contract, so
// every test runs against both.
func forEachStore(t *testing.T, test func(t *testing.T, store approvals.Store, clock *fakeClock)) {
	impls := map[string]func(*testing.T, *fakeClock) approvals.Store{
		"sqlite": newSQLiteStore,
		"memory": newMemoryStore,
	}
	for name, build := range impls {
		t.Run(name, func(t *testing.T) {
			clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
			test(t, build(t, clock), clock)
		})
	}
}

func TestCreatePending(t *testing.T) {
	forEachStore(t, func(t *testing.T, store approvals.Store, clock *fakeClock) {
		ctx := context.Background()

		req, err := store.CreatePending(ctx, "ord-1", "Widget", 1500, 2)
		require.NoError(t, err)

		assert.Equal(t, model.ApprovalPending, req.Status)
		assert.Equal(t, "Widget", req.OrderName)
		assert.Equal(t, req.CreatedAt.Add(approvals.Window), req.ExpiresAt)
		assert.Nil(t, req.ProcessedAt)

		got, err := store.Get(ctx, "ord-1")
		require.NoError(t, err)
		assert.Equal(t, model.ApprovalPending, got.Status)
		assert.True(t, got.ExpiresAt.Equal(got.CreatedAt.Add(approvals.Window)))
	})
}

func TestCreatePendingRejectsDuplicate(t *testing.T) {
	forEachStore(t, func(t *testing.T, store approvals.Store, clock *fakeClock) {
		ctx := context.Background()

		_, err := store.CreatePending(ctx, "ord-1", "Widget", 1500, 2)
		require.NoError(t, err)

		_, err = store.CreatePending(ctx, "ord-1", "Widget", 1500, 2)
		assert.ErrorIs(t, err, model.ErrConflict)
	})
}

func TestGetUnknownOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, store approvals.Store, clock *fakeClock) {
		_, err := store.Get(context.Background(), "nope")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestDecideApprove(t *testing.T) {
	forEachStore(t, func(t *testing.T, store approvals.Store, clock *fakeClock) {
		ctx := context.Background()

		_, err := store.CreatePending(ctx, "ord-1", "Widget", 1500, 2)
		require.NoError(t, err)

		req, err := store.Decide(ctx, "ord-1", true, "mgr", "ok")
		require.NoError(t, err)

		assert.Equal(t, model.ApprovalApproved, req.Status)
		assert.Equal(t, "mgr", req.ProcessedBy)
		assert.Equal(t, "ok", req.Comments)
		require.NotNil(t, req.ProcessedAt)
	})
}

func TestDecideIsDecideOnce(t *testing.T) {
	forEachStore(t, func(t *testing.T, store approvals.Store, clock *fakeClock) {
		ctx := context.Background()

		_, err := store.CreatePending(ctx, "ord-1", "Widget", 1500, 2)
		require.NoError(t, err)

		_, err = store.Decide(ctx, "ord-1", false, "mgr", "too expensive")
		require.NoError(t, err)

		// A second decision conflicts regardless of the value passed.
		_, err = store.Decide(ctx, "ord-1", false, "mgr", "still no")
		assert.ErrorIs(t, err, model.ErrConflict)
		_, err = store.Decide(ctx, "ord-1", true, "other-mgr", "changed my mind")
		assert.ErrorIs(t, err, model.ErrConflict)

		got, err := store.Get(ctx, "ord-1")
		require.NoError(t, err)
		assert.Equal(t, model.ApprovalRejected, got.Status)
		assert.Equal(t, "too expensive", got.Comments)
	})
}

func TestDecideUnknownOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, store approvals.Store, clock *fakeClock) {
		_, err := store.Decide(context.Background(), "nope", true, "mgr", "")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestDecideAfterExpiry(t *testing.T) {
	forEachStore(t, func(t *testing.T, store approvals.Store, clock *fakeClock) {
		ctx := context.Background()

		_, err := store.CreatePending(ctx, "ord-1", "Widget", 1500, 2)
		require.NoError(t, err)

		clock.advance(approvals.Window + time.Minute)

		// Lazy expiry: the late approve is refused and the record is
		// flipped to TimedOut, never Approved.
		_, err = store.Decide(ctx, "ord-1", true, "mgr", "late")
		assert.ErrorIs(t, err, model.ErrExpired)

		got, err := store.Get(ctx, "ord-1")
		require.NoError(t, err)
		assert.Equal(t, model.ApprovalTimedOut, got.Status)
		assert.Equal(t, approvals.TimeoutComment, got.Comments)
	})
}

func TestMarkTimedOutRace(t *testing.T) {
	forEachStore(t, func(t *testing.T, store approvals.Store, clock *fakeClock) {
		ctx := context.Background()

		_, err := store.CreatePending(ctx, "ord-1", "Widget", 1500, 2)
		require.NoError(t, err)

		timedOut, err := store.MarkTimedOut(ctx, "ord-1")
		require.NoError(t, err)
		assert.True(t, timedOut)

		// The loser of the race must not mutate anything.
		timedOut, err = store.MarkTimedOut(ctx, "ord-1")
		require.NoError(t, err)
		assert.False(t, timedOut)

		got, err := store.Get(ctx, "ord-1")
		require.NoError(t, err)
		assert.Equal(t, model.ApprovalTimedOut, got.Status)
	})
}

func TestMarkTimedOutLosesToDecision(t *testing.T) {
	forEachStore(t, func(t *testing.T, store approvals.Store, clock *fakeClock) {
		ctx := context.Background()

		_, err := store.CreatePending(ctx, "ord-1", "Widget", 1500, 2)
		require.NoError(t, err)

		_, err = store.Decide(ctx, "ord-1", true, "mgr", "ok")
		require.NoError(t, err)

		timedOut, err := store.MarkTimedOut(ctx, "ord-1")
		require.NoError(t, err)
		assert.False(t, timedOut)

		got, err := store.Get(ctx, "ord-1")
		require.NoError(t, err)
		assert.Equal(t, model.ApprovalApproved, got.Status)
	})
}

func TestMarkTimedOutUnknownOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, store approvals.Store, clock *fakeClock) {
		timedOut, err := store.MarkTimedOut(context.Background(), "nope")
		require.NoError(t, err)
		assert.False(t, timedOut)
	})
}

func TestListPendingNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, store approvals.Store, clock *fakeClock) {
		ctx := context.Background()

		_, err := store.CreatePending(ctx, "ord-1", "Widget", 1500, 1)
		require.NoError(t, err)
		clock.advance(time.Hour)
		_, err = store.CreatePending(ctx, "ord-2", "Gadget", 2000, 1)
		require.NoError(t, err)
		clock.advance(time.Hour)
		_, err = store.CreatePending(ctx, "ord-3", "Doohickey", 3000, 1)
		require.NoError(t, err)

		// Resolved records drop out of the pending list.
		_, err = store.Decide(ctx, "ord-2", false, "mgr", "no")
		require.NoError(t, err)

		pending := store.ListPending(ctx)
		require.Len(t, pending, 2)
		assert.Equal(t, "ord-3", pending[0].OrderID)
		assert.Equal(t, "ord-1", pending[1].OrderID)
	})
}

func TestListPendingDegradesToEmpty(t *testing.T) {
	// A backing-query failure returns an empty list, not an error.
	database, err := db.Open(filepath.Join(t.TempDir(), "approvals.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate())

	store := approvals.NewSQLiteStore(database.DB, zap.NewNop())
	require.NoError(t, database.Close())

	pending := store.ListPending(context.Background())
	assert.Empty(t, pending)
}

func TestStoreErrorsAreTyped(t *testing.T) {
	// Closed database surfaces as ErrUnavailable for the transport
	// layer to retry, not as a bare driver error.
	database, err := db.Open(filepath.Join(t.TempDir(), "approvals.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate())

	store := approvals.NewSQLiteStore(database.DB, zap.NewNop())
	require.NoError(t, database.Close())

	_, err = store.CreatePending(context.Background(), "ord-1", "Widget", 1500, 2)
	assert.ErrorIs(t, err, model.ErrUnavailable)
	assert.False(t, errors.Is(err, model.ErrConflict))
}
