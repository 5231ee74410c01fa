package db_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-approval-service/internal/db"
)

func TestOpenAndMigrate(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, database.Migrate())

	// Migrations are idempotent.
	require.NoError(t, database.Migrate())

	for _, table := range []string{"approvals", "inventory", "reservations"} {
		var name string
		err := database.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}

	var widgets int
	require.NoError(t, database.QueryRow(
		`SELECT quantity FROM inventory WHERE item_name = 'Widget'`).Scan(&widgets))
	assert.Equal(t, 100, widgets)
}
