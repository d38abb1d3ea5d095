package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/erazemk/fieldstock/internal/model"
	"github.com/stretchr/testify/require"
)

func mustWorker(t *testing.T, database *sql.DB, username string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, username, "hash", model.RoleWorker)
	require.NoError(t, err)
	return u
}

func mustAdmin(t *testing.T, database *sql.DB, username string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, username, "hash", model.RoleAdmin)
	require.NoError(t, err)
	return u
}

func mustItem(t *testing.T, database *sql.DB, name string, qty int) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), database, name, qty, nil)
	require.NoError(t, err)
	return item
}

func stockOf(t *testing.T, database *sql.DB, itemID int64) (total, reserved int) {
	t.Helper()
	item, err := GetItem(context.Background(), database, itemID)
	require.NoError(t, err)
	require.NotNil(t, item)
	return item.TotalQuantity, item.ReservedQuantity
}

func assignedOf(t *testing.T, database *sql.DB, workerID, itemID int64) int {
	t.Helper()
	a, err := getAssignment(context.Background(), database, workerID, itemID)
	require.NoError(t, err)
	if a == nil {
		return 0
	}
	return a.AssignedQuantity
}
