package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/fieldstock/internal/model"
)

// recordMovement appends a journal entry inside the caller's transaction.
func recordMovement(ctx context.Context, tx *sql.Tx, m model.Movement) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO stock_movements
		     (item_id, worker_id, reason, stock_delta, reserved_delta, assigned_delta, ref_id, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ItemID, m.WorkerID, m.Reason, m.StockDelta, m.ReservedDelta, m.AssignedDelta, m.RefID, m.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("recording movement: %w", err)
	}
	return nil
}

// ListMovements returns journal entries, optionally filtered by item or worker,
// newest first.
func ListMovements(ctx context.Context, db *sql.DB, itemID, workerID int64) ([]model.Movement, error) {
	query := `SELECT m.id, m.item_id, m.worker_id, m.reason, m.stock_delta, m.reserved_delta,
	                 m.assigned_delta, m.ref_id, m.created_by, m.created_at,
	                 i.name AS item_name, COALESCE(u.username, '') AS worker_name
	          FROM stock_movements m
	          JOIN items i ON i.id = m.item_id
	          LEFT JOIN users u ON u.id = m.worker_id
	          WHERE 1=1`
	var args []any

	if itemID > 0 {
		query += ` AND m.item_id = ?`
		args = append(args, itemID)
	}
	if workerID > 0 {
		query += ` AND m.worker_id = ?`
		args = append(args, workerID)
	}

	query += ` ORDER BY m.created_at DESC, m.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing movements: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

// GetItemHistory returns the journal for a single item.
func GetItemHistory(ctx context.Context, db *sql.DB, itemID int64) ([]model.Movement, error) {
	return ListMovements(ctx, db, itemID, 0)
}

func scanMovements(rows *sql.Rows) ([]model.Movement, error) {
	var movements []model.Movement
	for rows.Next() {
		var m model.Movement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.WorkerID, &m.Reason, &m.StockDelta, &m.ReservedDelta,
			&m.AssignedDelta, &m.RefID, &m.CreatedBy, &m.CreatedAt,
			&m.ItemName, &m.WorkerName); err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
