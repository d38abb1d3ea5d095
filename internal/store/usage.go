package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/fieldstock/internal/model"
)

// UsagePolicy controls which pools an approved usage claim is deducted from.
//
// Stock leaves the central pool when it is assigned (synced assignment or an
// approved shipment), so by default approval only reduces the worker's
// assignment. DeductStock additionally removes the units from central stock,
// for deployments that hand out stock through the override path.
type UsagePolicy struct {
	DeductStock bool
}

const usageSelect = `SELECT l.id, l.worker_id, l.item_id, l.quantity_used, l.photo_ref, l.is_approved,
        l.created_at, l.approved_at, l.approved_by, u.username AS worker_name, i.name AS item_name
 FROM usage_logs l
 JOIN users u ON u.id = l.worker_id
 JOIN items i ON i.id = l.item_id`

func scanUsage(row interface{ Scan(...any) error }) (*model.UsageLog, error) {
	l := &model.UsageLog{}
	err := row.Scan(&l.ID, &l.WorkerID, &l.ItemID, &l.QuantityUsed, &l.PhotoRef, &l.IsApproved,
		&l.Timestamp, &l.ApprovedAt, &l.ApprovedBy, &l.WorkerName, &l.ItemName)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func getUsage(ctx context.Context, q querier, id int64) (*model.UsageLog, error) {
	l, err := scanUsage(q.QueryRowContext(ctx, usageSelect+` WHERE l.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting usage log: %w", err)
	}
	return l, nil
}

// SubmitUsage records a pending usage claim. Nothing is checked against the
// worker's assignment or stock until an admin approves it.
func SubmitUsage(ctx context.Context, db *sql.DB, workerID, itemID int64, quantity int, photoRef string) (*model.UsageLog, error) {
	if quantity <= 0 {
		return nil, invalid("quantity must be positive")
	}
	photoRef = strings.TrimSpace(photoRef)
	if photoRef == "" {
		return nil, invalid("photo required")
	}

	if err := checkWorkerAndItem(ctx, db, workerID, itemID); err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO usage_logs (worker_id, item_id, quantity_used, photo_ref) VALUES (?, ?, ?, ?)`,
		workerID, itemID, quantity, photoRef,
	)
	if err != nil {
		return nil, fmt.Errorf("submitting usage: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting usage log id: %w", err)
	}

	return GetUsage(ctx, db, id)
}

// GetUsage returns a usage log by ID.
func GetUsage(ctx context.Context, db *sql.DB, id int64) (*model.UsageLog, error) {
	return getUsage(ctx, db, id)
}

// ApproveUsage approves a pending usage claim exactly once in a single
// transaction. The claim must not exceed the worker's assignment, which is
// always reduced by the used quantity. Central stock is only checked and
// deducted when policy.DeductStock is set; under the default policy an item
// whose available stock cannot cover the claim is still approved. Every
// precondition is checked before anything is written.
func ApproveUsage(ctx context.Context, db *sql.DB, logID int64, approvedBy *int64, policy UsagePolicy) (*model.UsageLog, error) {
	err := withTx(ctx, db, "usage approval", func(tx *sql.Tx) error {
		l, err := getUsage(ctx, tx, logID)
		if err != nil {
			return err
		}
		if l == nil {
			return notFound("usage log %d not found", logID)
		}
		if l.IsApproved {
			return &Error{Kind: KindAlreadyApproved, Message: fmt.Sprintf("usage log %d already approved", logID)}
		}

		a, err := getAssignment(ctx, tx, l.WorkerID, l.ItemID)
		if err != nil {
			return err
		}
		if a == nil {
			return notFound("assignment for worker %d item %d not found", l.WorkerID, l.ItemID)
		}
		if l.QuantityUsed > a.AssignedQuantity {
			return exceedsAssigned(a.AssignedQuantity, l.QuantityUsed)
		}

		stockDelta := 0
		if policy.DeductStock {
			item, err := activeItem(ctx, tx, l.ItemID)
			if err != nil {
				return err
			}
			if l.QuantityUsed > item.Available() {
				return insufficientStock(item.ID, item.Available(), l.QuantityUsed)
			}
			if _, err := adjustStock(ctx, tx, l.ItemID, -l.QuantityUsed, 0); err != nil {
				return err
			}
			stockDelta = -l.QuantityUsed
		}

		if err := writeAssigned(ctx, tx, a, a.AssignedQuantity-l.QuantityUsed); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE usage_logs SET is_approved = 1, approved_at = CURRENT_TIMESTAMP, approved_by = ?
			 WHERE id = ? AND is_approved = 0`,
			approvedBy, logID,
		)
		if err != nil {
			return fmt.Errorf("approving usage: %w", err)
		}
		ok, err := expectOneRow(res)
		if err != nil {
			return err
		}
		if !ok {
			return &Error{Kind: KindAlreadyApproved, Message: fmt.Sprintf("usage log %d already approved", logID)}
		}

		return recordMovement(ctx, tx, model.Movement{
			ItemID:        l.ItemID,
			WorkerID:      &l.WorkerID,
			Reason:        model.MovementUsageApproved,
			StockDelta:    stockDelta,
			AssignedDelta: -l.QuantityUsed,
			RefID:         &logID,
			CreatedBy:     approvedBy,
		})
	})
	if err != nil {
		return nil, err
	}

	return GetUsage(ctx, db, logID)
}

// ListPendingUsage returns all unapproved usage claims, newest first.
func ListPendingUsage(ctx context.Context, db *sql.DB) ([]model.UsageLog, error) {
	return listUsage(ctx, db, usageSelect+` WHERE l.is_approved = 0 ORDER BY l.created_at DESC, l.id DESC`)
}

// ListUsageForWorker returns a worker's usage history, newest first.
func ListUsageForWorker(ctx context.Context, db *sql.DB, workerID int64) ([]model.UsageLog, error) {
	return listUsage(ctx, db, usageSelect+` WHERE l.worker_id = ? ORDER BY l.created_at DESC, l.id DESC`, workerID)
}

func listUsage(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.UsageLog, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing usage logs: %w", err)
	}
	defer rows.Close()

	var logs []model.UsageLog
	for rows.Next() {
		l, err := scanUsage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning usage log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}
