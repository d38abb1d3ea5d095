package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/erazemk/fieldstock/internal/db"
	"github.com/erazemk/fieldstock/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shipOne creates a single shipment of qty units of item for worker.
func shipOne(t *testing.T, database *sql.DB, workerID, itemID int64, qty int) *model.Shipment {
	t.Helper()
	results, err := CreateShipments(context.Background(), database, []int64{workerID},
		[]model.ManifestLine{{ItemID: itemID, Quantity: qty}}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Applied, results[0].Reason)
	return results[0].Shipment
}

// receiveOne moves a pending shipment through send and receive.
func receiveOne(t *testing.T, database *sql.DB, s *model.Shipment, qty int) {
	t.Helper()
	ctx := context.Background()
	_, err := SendShipment(ctx, database, s.ID)
	require.NoError(t, err)
	_, err = ReceiveShipment(ctx, database, s.ID, s.WorkerID, qty, "receipt-photo")
	require.NoError(t, err)
}

func TestCourierHappyPath(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := mustAdmin(t, database, "admin")
	worker := mustWorker(t, database, "w")
	gloves := mustItem(t, database, "Gloves", 100)

	s := shipOne(t, database, worker.ID, gloves.ID, 10)
	assert.Equal(t, model.ShipmentPending, s.Status)
	require.Len(t, s.Lines, 1)
	assert.Equal(t, "Gloves", s.Lines[0].ItemName)

	total, reserved := stockOf(t, database, gloves.ID)
	assert.Equal(t, 100, total)
	assert.Equal(t, 10, reserved)

	sent, err := SendShipment(ctx, database, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentSent, sent.Status)
	assert.NotNil(t, sent.SentAt)

	received, err := ReceiveShipment(ctx, database, s.ID, worker.ID, 10, "receipt-photo")
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentReceived, received.Status)
	require.NotNil(t, received.ReceivedQuantity)
	assert.Equal(t, 10, *received.ReceivedQuantity)
	assert.Equal(t, "receipt-photo", received.ReceivedPhoto)

	approved, err := ApproveShipment(ctx, database, s.ID, &admin.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentApproved, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)

	total, reserved = stockOf(t, database, gloves.ID)
	assert.Equal(t, 90, total)
	assert.Equal(t, 0, reserved)
	assert.Equal(t, 10, assignedOf(t, database, worker.ID, gloves.ID))

	history, err := GetItemHistory(ctx, database, gloves.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MovementShipmentApproved, history[0].Reason)
	assert.Equal(t, model.MovementShipmentReserved, history[1].Reason)
}

func TestCourierApproveMultipleLines(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	worker := mustWorker(t, database, "w")
	gloves := mustItem(t, database, "Gloves", 50)
	tape := mustItem(t, database, "Tape", 50)

	results, err := CreateShipments(ctx, database, []int64{worker.ID}, []model.ManifestLine{
		{ItemID: gloves.ID, Quantity: 5},
		{ItemID: tape.ID, Quantity: 7},
	}, nil)
	require.NoError(t, err)
	s := results[0].Shipment
	require.Len(t, s.Lines, 2)

	receiveOne(t, database, s, 12)
	_, err = ApproveShipment(ctx, database, s.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, assignedOf(t, database, worker.ID, gloves.ID))
	assert.Equal(t, 7, assignedOf(t, database, worker.ID, tape.ID))
	total, _ := stockOf(t, database, tape.ID)
	assert.Equal(t, 43, total)
}

func TestCourierForwardOnly(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	worker := mustWorker(t, database, "w")
	gloves := mustItem(t, database, "Gloves", 100)
	s := shipOne(t, database, worker.ID, gloves.ID, 10)

	_, err := ApproveShipment(ctx, database, s.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = RejectShipment(ctx, database, s.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = ReceiveShipment(ctx, database, s.ID, worker.ID, 10, "photo")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	_, err = SendShipment(ctx, database, s.ID)
	require.NoError(t, err)
	_, err = SendShipment(ctx, database, s.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = ApproveShipment(ctx, database, s.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	// Nothing moved while transitions were refused.
	total, reserved := stockOf(t, database, gloves.ID)
	assert.Equal(t, 100, total)
	assert.Equal(t, 10, reserved)
	assert.Equal(t, 0, assignedOf(t, database, worker.ID, gloves.ID))

	_, err = SendShipment(ctx, database, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCourierReceiveChecks(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	worker := mustWorker(t, database, "w")
	other := mustWorker(t, database, "other")
	gloves := mustItem(t, database, "Gloves", 100)
	s := shipOne(t, database, worker.ID, gloves.ID, 10)
	_, err := SendShipment(ctx, database, s.ID)
	require.NoError(t, err)

	_, err = ReceiveShipment(ctx, database, s.ID, other.ID, 10, "photo")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ReceiveShipment(ctx, database, s.ID, worker.ID, 0, "photo")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ReceiveShipment(ctx, database, s.ID, worker.ID, 10, "")
	assert.ErrorIs(t, err, ErrValidation)

	got, err := GetShipment(ctx, database, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentSent, got.Status)
}

func TestCourierRejectIsTerminal(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	worker := mustWorker(t, database, "w")
	gloves := mustItem(t, database, "Gloves", 100)
	s := shipOne(t, database, worker.ID, gloves.ID, 10)
	receiveOne(t, database, s, 10)

	rejected, err := RejectShipment(ctx, database, s.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentRejected, rejected.Status)
	assert.NotNil(t, rejected.RejectedAt)

	total, reserved := stockOf(t, database, gloves.ID)
	assert.Equal(t, 100, total)
	assert.Equal(t, 0, reserved)
	assert.Equal(t, 0, assignedOf(t, database, worker.ID, gloves.ID))

	_, err = ApproveShipment(ctx, database, s.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = RejectShipment(ctx, database, s.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	total, reserved = stockOf(t, database, gloves.ID)
	assert.Equal(t, 100, total)
	assert.Equal(t, 0, reserved)
}

func TestCourierApprovedIsTerminal(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	worker := mustWorker(t, database, "w")
	gloves := mustItem(t, database, "Gloves", 100)
	s := shipOne(t, database, worker.ID, gloves.ID, 10)
	receiveOne(t, database, s, 10)

	_, err := ApproveShipment(ctx, database, s.ID, nil)
	require.NoError(t, err)
	_, err = ApproveShipment(ctx, database, s.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = RejectShipment(ctx, database, s.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	assert.Equal(t, 10, assignedOf(t, database, worker.ID, gloves.ID))
}

func TestCreateShipmentsPerEntryResults(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := mustAdmin(t, database, "admin")
	w1 := mustWorker(t, database, "w1")
	w2 := mustWorker(t, database, "w2")
	gloves := mustItem(t, database, "Gloves", 15)
	tape := mustItem(t, database, "Tape", 100)

	results, err := CreateShipments(ctx, database,
		[]int64{w1.ID, 9999, w1.ID, admin.ID, w2.ID},
		[]model.ManifestLine{
			{ItemID: gloves.ID, Quantity: 10},
			{ItemID: 8888, Quantity: 1},
			{ItemID: tape.ID, Quantity: 0},
		}, &admin.ID)
	require.NoError(t, err)
	require.Len(t, results, 5)

	// w1 gets the gloves; the unknown item and zero line are skipped.
	assert.True(t, results[0].Applied)
	require.Len(t, results[0].Lines, 3)
	assert.True(t, results[0].Lines[0].Applied)
	assert.Equal(t, SkipItemNotFound, results[0].Lines[1].Reason)
	assert.Equal(t, SkipInvalidQuantity, results[0].Lines[2].Reason)
	require.NotNil(t, results[0].Shipment)
	assert.Len(t, results[0].Shipment.Lines, 1)
	require.NotNil(t, results[0].Shipment.CreatedBy)
	assert.Equal(t, admin.ID, *results[0].Shipment.CreatedBy)

	assert.Equal(t, SkipWorkerNotFound, results[1].Reason)
	assert.Equal(t, SkipDuplicateWorker, results[2].Reason)
	assert.Equal(t, SkipWorkerNotFound, results[3].Reason)

	// Only 5 gloves are left unreserved, so w2 has nothing to receive.
	assert.False(t, results[4].Applied)
	assert.Equal(t, SkipNoApplicableLine, results[4].Reason)
	require.Len(t, results[4].Lines, 3)
	assert.Contains(t, results[4].Lines[0].Reason, "insufficient stock")
	assert.Nil(t, results[4].Shipment)

	_, reserved := stockOf(t, database, gloves.ID)
	assert.Equal(t, 10, reserved)

	all, err := ListShipments(ctx, database, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateShipmentsValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	worker := mustWorker(t, database, "w")
	gloves := mustItem(t, database, "Gloves", 10)

	_, err := CreateShipments(ctx, database, nil, []model.ManifestLine{{ItemID: gloves.ID, Quantity: 1}}, nil)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = CreateShipments(ctx, database, []int64{worker.ID}, nil, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReservationPreventsOverCommit(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	w1 := mustWorker(t, database, "w1")
	w2 := mustWorker(t, database, "w2")
	gloves := mustItem(t, database, "Gloves", 10)

	s1 := shipOne(t, database, w1.ID, gloves.ID, 7)

	results, err := CreateShipments(ctx, database, []int64{w2.ID},
		[]model.ManifestLine{{ItemID: gloves.ID, Quantity: 7}}, nil)
	require.NoError(t, err)
	assert.False(t, results[0].Applied)

	// Stock cannot be written down into the reservation either.
	_, err = AdjustItemTotal(ctx, database, gloves.ID, -4, nil)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	receiveOne(t, database, s1, 7)
	_, err = ApproveShipment(ctx, database, s1.ID, nil)
	require.NoError(t, err)

	total, reserved := stockOf(t, database, gloves.ID)
	assert.Equal(t, 3, total)
	assert.Equal(t, 0, reserved)
}

func TestListShipments(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	w1 := mustWorker(t, database, "w1")
	w2 := mustWorker(t, database, "w2")
	gloves := mustItem(t, database, "Gloves", 100)

	pending := shipOne(t, database, w1.ID, gloves.ID, 1)
	received := shipOne(t, database, w1.ID, gloves.ID, 2)
	receiveOne(t, database, received, 2)
	other := shipOne(t, database, w2.ID, gloves.ID, 3)
	_, err := SendShipment(ctx, database, other.ID)
	require.NoError(t, err)

	approvals, err := ListShipments(ctx, database, model.ShipmentReceived)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, received.ID, approvals[0].ID)
	require.Len(t, approvals[0].Lines, 1)

	sent, err := ListShipments(ctx, database, model.ShipmentSent)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "w2", sent[0].WorkerName)

	_, err = ListShipments(ctx, database, "lost")
	assert.ErrorIs(t, err, ErrValidation)

	mine, err := ListShipmentsForWorker(ctx, database, w1.ID, false)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, received.ID, mine[0].ID)

	mine, err = ListShipmentsForWorker(ctx, database, w1.ID, true)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	ids := []int64{mine[0].ID, mine[1].ID}
	assert.ElementsMatch(t, []int64{pending.ID, received.ID}, ids)
}
