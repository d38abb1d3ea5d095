package store

import (
	"context"
	"testing"

	"github.com/erazemk/fieldstock/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndListLocations(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	w1 := mustWorker(t, database, "w1")
	w2 := mustWorker(t, database, "w2")

	_, err := SaveLocation(ctx, database, w1.ID, decimal.RequireFromString("46.0569"), decimal.RequireFromString("14.5058"))
	require.NoError(t, err)
	last, err := SaveLocation(ctx, database, w1.ID, decimal.RequireFromString("46.2397"), decimal.RequireFromString("15.2677"))
	require.NoError(t, err)
	assert.True(t, last.Latitude.Equal(decimal.RequireFromString("46.2397")))
	assert.Equal(t, "w1", last.WorkerName)

	_, err = SaveLocation(ctx, database, w2.ID, decimal.RequireFromString("-33.8688"), decimal.RequireFromString("151.2093"))
	require.NoError(t, err)

	history, err := ListLocationsForWorker(ctx, database, w1.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, last.ID, history[0].ID)

	limited, err := ListLocationsForWorker(ctx, database, w1.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	latest, err := LatestLocations(ctx, database)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, last.ID, latest[0].ID)
	assert.Equal(t, "w2", latest[1].WorkerName)
}

func TestSaveLocationValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	worker := mustWorker(t, database, "w")
	admin := mustAdmin(t, database, "admin")

	_, err := SaveLocation(ctx, database, worker.ID, decimal.NewFromInt(91), decimal.Zero)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = SaveLocation(ctx, database, worker.ID, decimal.Zero, decimal.NewFromInt(-181))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = SaveLocation(ctx, database, admin.ID, decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMembers(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustAdmin(t, database, "admin")
	w1 := mustWorker(t, database, "w1")
	w2 := mustWorker(t, database, "w2")
	gloves := mustItem(t, database, "Gloves", 100)

	_, err := SetAssignment(ctx, database, w1.ID, gloves.ID, 20, nil)
	require.NoError(t, err)
	_, err = SaveLocation(ctx, database, w1.ID, decimal.NewFromFloat(46.05), decimal.NewFromFloat(14.5))
	require.NoError(t, err)

	members, err := ListMembers(ctx, database)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "w1", members[0].Username)
	require.Len(t, members[0].Assignments, 1)
	assert.Equal(t, 20, members[0].Assignments[0].AssignedQuantity)
	assert.NotNil(t, members[0].LastLocation)
	assert.Empty(t, members[1].Assignments)
	assert.Nil(t, members[1].LastLocation)

	m, err := GetMember(ctx, database, w2.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, w2.ID, m.ID)

	missing, err := GetMember(ctx, database, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
