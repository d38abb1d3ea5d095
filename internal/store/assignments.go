package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/fieldstock/internal/model"
)

func getAssignment(ctx context.Context, q querier, workerID, itemID int64) (*model.Assignment, error) {
	a := &model.Assignment{}
	err := q.QueryRowContext(ctx,
		`SELECT id, worker_id, item_id, assigned_quantity, updated_at
		 FROM assignments WHERE worker_id = ? AND item_id = ?`, workerID, itemID,
	).Scan(&a.ID, &a.WorkerID, &a.ItemID, &a.AssignedQuantity, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting assignment: %w", err)
	}
	return a, nil
}

// ensureAssignment returns the (worker, item) row, creating it with quantity 0.
func ensureAssignment(ctx context.Context, tx *sql.Tx, workerID, itemID int64) (*model.Assignment, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO assignments (worker_id, item_id, assigned_quantity) VALUES (?, ?, 0)
		 ON CONFLICT (worker_id, item_id) DO NOTHING`,
		workerID, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating assignment: %w", err)
	}

	a, err := getAssignment(ctx, tx, workerID, itemID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("assignment for worker %d item %d vanished", workerID, itemID)
	}
	return a, nil
}

// writeAssigned sets a row to qty, guarded on the quantity the caller read.
func writeAssigned(ctx context.Context, tx *sql.Tx, a *model.Assignment, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE assignments SET assigned_quantity = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND assigned_quantity = ?`,
		qty, a.ID, a.AssignedQuantity,
	)
	if err != nil {
		return fmt.Errorf("updating assignment: %w", err)
	}
	ok, err := expectOneRow(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("assignment %d changed concurrently", a.ID)
	}
	a.AssignedQuantity = qty
	return nil
}

// adjustAssigned changes a worker's holding by delta. A result below zero is
// an exceeds-assigned error.
func adjustAssigned(ctx context.Context, tx *sql.Tx, workerID, itemID int64, delta int) (*model.Assignment, error) {
	a, err := ensureAssignment(ctx, tx, workerID, itemID)
	if err != nil {
		return nil, err
	}
	next := a.AssignedQuantity + delta
	if next < 0 {
		return nil, exceedsAssigned(a.AssignedQuantity, -delta)
	}
	if err := writeAssigned(ctx, tx, a, next); err != nil {
		return nil, err
	}
	return a, nil
}

// checkWorkerAndItem validates both sides of an assignment.
func checkWorkerAndItem(ctx context.Context, q querier, workerID, itemID int64) error {
	if _, err := activeWorker(ctx, q, workerID); err != nil {
		return err
	}
	if _, err := activeItem(ctx, q, itemID); err != nil {
		return err
	}
	return nil
}

// GetOrCreateAssignment returns the worker's row for an item, creating an
// empty one on first use.
func GetOrCreateAssignment(ctx context.Context, db *sql.DB, workerID, itemID int64) (*model.Assignment, error) {
	var a *model.Assignment
	err := withTx(ctx, db, "assignment creation", func(tx *sql.Tx) error {
		if err := checkWorkerAndItem(ctx, tx, workerID, itemID); err != nil {
			return err
		}
		var err error
		a, err = ensureAssignment(ctx, tx, workerID, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// SetAssignment sets a worker's holding of an item to qty and moves the
// difference out of (or back into) central stock in the same transaction.
// Fails with an insufficient stock error if the available stock cannot cover
// an increase.
func SetAssignment(ctx context.Context, db *sql.DB, workerID, itemID int64, qty int, userID *int64) (*model.Assignment, error) {
	if qty < 0 {
		return nil, invalid("quantity must not be negative")
	}

	var a *model.Assignment
	err := withTx(ctx, db, "assignment", func(tx *sql.Tx) error {
		if err := checkWorkerAndItem(ctx, tx, workerID, itemID); err != nil {
			return err
		}

		var err error
		a, err = ensureAssignment(ctx, tx, workerID, itemID)
		if err != nil {
			return err
		}

		delta := qty - a.AssignedQuantity
		if delta == 0 {
			return nil
		}
		if _, err := adjustStock(ctx, tx, itemID, -delta, 0); err != nil {
			return err
		}
		if err := writeAssigned(ctx, tx, a, qty); err != nil {
			return err
		}
		return recordMovement(ctx, tx, model.Movement{
			ItemID:        itemID,
			WorkerID:      &workerID,
			Reason:        model.MovementAssignmentSet,
			StockDelta:    -delta,
			AssignedDelta: delta,
			CreatedBy:     userID,
		})
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// AdjustAssignment changes a worker's holding by delta, drawing from central
// stock for positive deltas and returning units to it for negative ones.
func AdjustAssignment(ctx context.Context, db *sql.DB, workerID, itemID int64, delta int, userID *int64) (*model.Assignment, error) {
	if delta == 0 {
		return nil, invalid("delta must be non-zero")
	}

	var a *model.Assignment
	err := withTx(ctx, db, "assignment adjustment", func(tx *sql.Tx) error {
		if err := checkWorkerAndItem(ctx, tx, workerID, itemID); err != nil {
			return err
		}

		var err error
		a, err = adjustAssigned(ctx, tx, workerID, itemID, delta)
		if err != nil {
			return err
		}
		if _, err := adjustStock(ctx, tx, itemID, -delta, 0); err != nil {
			return err
		}
		return recordMovement(ctx, tx, model.Movement{
			ItemID:        itemID,
			WorkerID:      &workerID,
			Reason:        model.MovementAssignmentAdjusted,
			StockDelta:    -delta,
			AssignedDelta: delta,
			CreatedBy:     userID,
		})
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// OverrideAssignment overwrites a worker's holding without touching central
// stock. It bypasses stock accounting and exists for correcting records after
// a physical count; the journal entry is marked as an override.
func OverrideAssignment(ctx context.Context, db *sql.DB, workerID, itemID int64, qty int, userID *int64) (*model.Assignment, error) {
	if qty < 0 {
		return nil, invalid("quantity must not be negative")
	}

	var a *model.Assignment
	err := withTx(ctx, db, "assignment override", func(tx *sql.Tx) error {
		if err := checkWorkerAndItem(ctx, tx, workerID, itemID); err != nil {
			return err
		}

		var err error
		a, err = ensureAssignment(ctx, tx, workerID, itemID)
		if err != nil {
			return err
		}

		delta := qty - a.AssignedQuantity
		if delta == 0 {
			return nil
		}
		if err := writeAssigned(ctx, tx, a, qty); err != nil {
			return err
		}
		return recordMovement(ctx, tx, model.Movement{
			ItemID:        itemID,
			WorkerID:      &workerID,
			Reason:        model.MovementAssignmentOverride,
			AssignedDelta: delta,
			CreatedBy:     userID,
		})
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAssignmentsForWorker returns everything a worker holds, by item name.
func ListAssignmentsForWorker(ctx context.Context, db *sql.DB, workerID int64) ([]model.Assignment, error) {
	return listAssignments(ctx, db, workerID)
}

// ListAllAssignments returns the non-empty holdings of every active worker,
// by worker and item name.
func ListAllAssignments(ctx context.Context, db *sql.DB) ([]model.Assignment, error) {
	return queryAssignments(ctx, db,
		assignmentSelect+`
		 WHERE a.assigned_quantity > 0 AND u.deleted_at IS NULL
		 ORDER BY u.username, i.name COLLATE NOCASE`,
	)
}

const assignmentSelect = `SELECT a.id, a.worker_id, a.item_id, a.assigned_quantity, a.updated_at,
        i.name AS item_name, u.username AS worker_name
 FROM assignments a
 JOIN items i ON i.id = a.item_id
 JOIN users u ON u.id = a.worker_id`

func listAssignments(ctx context.Context, q querier, workerID int64) ([]model.Assignment, error) {
	return queryAssignments(ctx, q,
		assignmentSelect+`
		 WHERE a.worker_id = ? AND (i.deleted_at IS NULL OR a.assigned_quantity > 0)
		 ORDER BY i.name COLLATE NOCASE`, workerID,
	)
}

func queryAssignments(ctx context.Context, q querier, query string, args ...any) ([]model.Assignment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ID, &a.WorkerID, &a.ItemID, &a.AssignedQuantity, &a.UpdatedAt,
			&a.ItemName, &a.WorkerName); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// AssignedTotals returns the sum assigned to all workers, keyed by item ID.
func AssignedTotals(ctx context.Context, db *sql.DB) (map[int64]int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT item_id, SUM(assigned_quantity) FROM assignments GROUP BY item_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("summing assignments: %w", err)
	}
	defer rows.Close()

	totals := make(map[int64]int)
	for rows.Next() {
		var itemID int64
		var total int
		if err := rows.Scan(&itemID, &total); err != nil {
			return nil, fmt.Errorf("scanning assignment total: %w", err)
		}
		totals[itemID] = total
	}
	return totals, rows.Err()
}
