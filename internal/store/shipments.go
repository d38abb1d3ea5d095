package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/fieldstock/internal/model"
)

// Reasons reported for skipped shipment entries.
const (
	SkipWorkerNotFound   = "worker not found"
	SkipDuplicateWorker  = "duplicate worker"
	SkipItemNotFound     = "item not found"
	SkipInvalidQuantity  = "quantity must be positive"
	SkipNoApplicableLine = "no applicable lines"
)

// LineResult reports what happened to one manifest line for one worker.
type LineResult struct {
	ItemID   int64  `json:"item_id"`
	Quantity int    `json:"quantity"`
	Applied  bool   `json:"applied"`
	Reason   string `json:"reason,omitempty"`
}

// ShipmentResult reports the outcome of creating a shipment for one worker.
type ShipmentResult struct {
	WorkerID int64           `json:"worker_id"`
	Applied  bool            `json:"applied"`
	Reason   string          `json:"reason,omitempty"`
	Shipment *model.Shipment `json:"shipment,omitempty"`
	Lines    []LineResult    `json:"lines,omitempty"`
}

const shipmentSelect = `SELECT s.id, s.worker_id, s.status, s.created_at, s.created_by, s.sent_at,
        s.received_at, s.received_quantity, s.received_photo, s.approved_at, s.rejected_at,
        u.username AS worker_name
 FROM shipments s
 JOIN users u ON u.id = s.worker_id`

func scanShipment(row interface{ Scan(...any) error }) (*model.Shipment, error) {
	s := &model.Shipment{}
	var photo sql.NullString
	err := row.Scan(&s.ID, &s.WorkerID, &s.Status, &s.CreatedAt, &s.CreatedBy, &s.SentAt,
		&s.ReceivedAt, &s.ReceivedQuantity, &photo, &s.ApprovedAt, &s.RejectedAt,
		&s.WorkerName)
	if err != nil {
		return nil, err
	}
	s.ReceivedPhoto = photo.String
	return s, nil
}

func loadLines(ctx context.Context, q querier, s *model.Shipment) error {
	rows, err := q.QueryContext(ctx,
		`SELECT l.id, l.shipment_id, l.item_id, l.quantity, i.name AS item_name
		 FROM shipment_lines l
		 JOIN items i ON i.id = l.item_id
		 WHERE l.shipment_id = ?
		 ORDER BY l.id`, s.ID,
	)
	if err != nil {
		return fmt.Errorf("listing shipment lines: %w", err)
	}
	defer rows.Close()

	s.Lines = []model.ShipmentLine{}
	for rows.Next() {
		var l model.ShipmentLine
		if err := rows.Scan(&l.ID, &l.ShipmentID, &l.ItemID, &l.Quantity, &l.ItemName); err != nil {
			return fmt.Errorf("scanning shipment line: %w", err)
		}
		s.Lines = append(s.Lines, l)
	}
	return rows.Err()
}

func getShipment(ctx context.Context, q querier, id int64) (*model.Shipment, error) {
	s, err := scanShipment(q.QueryRowContext(ctx, shipmentSelect+` WHERE s.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting shipment: %w", err)
	}
	if err := loadLines(ctx, q, s); err != nil {
		return nil, err
	}
	return s, nil
}

// moveShipment advances a shipment to next if the lifecycle allows it. The
// UPDATE is guarded on the current status so a racing transition fails
// instead of applying twice.
func moveShipment(ctx context.Context, tx *sql.Tx, s *model.Shipment, next model.ShipmentStatus, set string, args ...any) error {
	if !s.Status.CanTransition(next) {
		return invalidTransition(s.Status, next)
	}

	query := `UPDATE shipments SET status = ?`
	if set != "" {
		query += `, ` + set
	}
	query += ` WHERE id = ? AND status = ?`

	params := append([]any{next}, args...)
	params = append(params, s.ID, s.Status)

	res, err := tx.ExecContext(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("updating shipment status: %w", err)
	}
	ok, err := expectOneRow(res)
	if err != nil {
		return err
	}
	if !ok {
		return invalidTransition(s.Status, next)
	}
	s.Status = next
	return nil
}

// CreateShipments creates one pending shipment per worker, each carrying a
// copy of the manifest. Every applied line reserves its quantity from central
// stock. Unknown or duplicate workers, unknown items, non-positive quantities
// and lines the available stock cannot cover are skipped and reported in the
// per-entry results instead of failing the whole request.
func CreateShipments(ctx context.Context, db *sql.DB, workerIDs []int64, manifest []model.ManifestLine, createdBy *int64) ([]ShipmentResult, error) {
	if len(workerIDs) == 0 {
		return nil, invalid("at least one worker required")
	}
	if len(manifest) == 0 {
		return nil, invalid("at least one manifest line required")
	}

	results := make([]ShipmentResult, 0, len(workerIDs))
	err := withTx(ctx, db, "shipment creation", func(tx *sql.Tx) error {
		results = results[:0]
		seen := make(map[int64]bool, len(workerIDs))

		for _, workerID := range workerIDs {
			res := ShipmentResult{WorkerID: workerID}

			if seen[workerID] {
				res.Reason = SkipDuplicateWorker
				results = append(results, res)
				continue
			}
			seen[workerID] = true

			if _, err := activeWorker(ctx, tx, workerID); err != nil {
				if !errors.Is(err, ErrNotFound) {
					return err
				}
				res.Reason = SkipWorkerNotFound
				results = append(results, res)
				continue
			}

			shipmentID, lines, err := createShipment(ctx, tx, workerID, manifest, createdBy)
			if err != nil {
				return err
			}
			res.Lines = lines
			if shipmentID == 0 {
				res.Reason = SkipNoApplicableLine
			} else {
				res.Applied = true
				res.Shipment = &model.Shipment{ID: shipmentID}
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range results {
		if results[i].Shipment == nil {
			continue
		}
		s, err := GetShipment(ctx, db, results[i].Shipment.ID)
		if err != nil {
			return nil, err
		}
		results[i].Shipment = s
	}
	return results, nil
}

// createShipment reserves the manifest for one worker. The shipment row is
// only inserted once the first line is applied; a zero ID means nothing was.
func createShipment(ctx context.Context, tx *sql.Tx, workerID int64, manifest []model.ManifestLine, createdBy *int64) (int64, []LineResult, error) {
	var shipmentID int64
	lines := make([]LineResult, 0, len(manifest))

	for _, m := range manifest {
		lr := LineResult{ItemID: m.ItemID, Quantity: m.Quantity}

		if m.Quantity <= 0 {
			lr.Reason = SkipInvalidQuantity
			lines = append(lines, lr)
			continue
		}

		if _, err := adjustStock(ctx, tx, m.ItemID, 0, m.Quantity); err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				lr.Reason = SkipItemNotFound
			case errors.Is(err, ErrInsufficientStock):
				lr.Reason = err.Error()
			default:
				return 0, nil, err
			}
			lines = append(lines, lr)
			continue
		}

		if shipmentID == 0 {
			result, err := tx.ExecContext(ctx,
				`INSERT INTO shipments (worker_id, status, created_by) VALUES (?, ?, ?)`,
				workerID, model.ShipmentPending, createdBy,
			)
			if err != nil {
				return 0, nil, fmt.Errorf("creating shipment: %w", err)
			}
			shipmentID, err = result.LastInsertId()
			if err != nil {
				return 0, nil, fmt.Errorf("getting shipment id: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO shipment_lines (shipment_id, item_id, quantity) VALUES (?, ?, ?)`,
			shipmentID, m.ItemID, m.Quantity,
		); err != nil {
			return 0, nil, fmt.Errorf("adding shipment line: %w", err)
		}

		if err := recordMovement(ctx, tx, model.Movement{
			ItemID:        m.ItemID,
			WorkerID:      &workerID,
			Reason:        model.MovementShipmentReserved,
			ReservedDelta: m.Quantity,
			RefID:         &shipmentID,
			CreatedBy:     createdBy,
		}); err != nil {
			return 0, nil, err
		}

		lr.Applied = true
		lines = append(lines, lr)
	}

	return shipmentID, lines, nil
}

// GetShipment returns a shipment with its manifest lines.
func GetShipment(ctx context.Context, db *sql.DB, id int64) (*model.Shipment, error) {
	return getShipment(ctx, db, id)
}

// SendShipment marks a pending shipment as handed to the courier.
func SendShipment(ctx context.Context, db *sql.DB, id int64) (*model.Shipment, error) {
	err := withTx(ctx, db, "shipment dispatch", func(tx *sql.Tx) error {
		s, err := getShipment(ctx, tx, id)
		if err != nil {
			return err
		}
		if s == nil {
			return notFound("shipment %d not found", id)
		}
		return moveShipment(ctx, tx, s, model.ShipmentSent, `sent_at = CURRENT_TIMESTAMP`)
	})
	if err != nil {
		return nil, err
	}
	return GetShipment(ctx, db, id)
}

// ReceiveShipment records the owning worker's receipt of a sent shipment,
// together with the counted quantity and a photo of the delivery.
func ReceiveShipment(ctx context.Context, db *sql.DB, id, workerID int64, quantity int, photoRef string) (*model.Shipment, error) {
	if quantity <= 0 {
		return nil, invalid("received quantity must be positive")
	}
	photoRef = strings.TrimSpace(photoRef)
	if photoRef == "" {
		return nil, invalid("received photo required")
	}

	err := withTx(ctx, db, "shipment receipt", func(tx *sql.Tx) error {
		s, err := getShipment(ctx, tx, id)
		if err != nil {
			return err
		}
		if s == nil || s.WorkerID != workerID {
			return notFound("shipment %d not found", id)
		}
		return moveShipment(ctx, tx, s, model.ShipmentReceived,
			`received_at = CURRENT_TIMESTAMP, received_quantity = ?, received_photo = ?`,
			quantity, photoRef,
		)
	})
	if err != nil {
		return nil, err
	}
	return GetShipment(ctx, db, id)
}

// ApproveShipment closes a received shipment: every manifest line is credited
// to the worker's assignment and leaves central stock, releasing its
// reservation. All lines apply or none do.
func ApproveShipment(ctx context.Context, db *sql.DB, id int64, approvedBy *int64) (*model.Shipment, error) {
	err := withTx(ctx, db, "shipment approval", func(tx *sql.Tx) error {
		s, err := getShipment(ctx, tx, id)
		if err != nil {
			return err
		}
		if s == nil {
			return notFound("shipment %d not found", id)
		}
		if !s.Status.CanTransition(model.ShipmentApproved) {
			return invalidTransition(s.Status, model.ShipmentApproved)
		}

		for _, l := range s.Lines {
			if _, err := adjustStock(ctx, tx, l.ItemID, -l.Quantity, -l.Quantity); err != nil {
				return err
			}
			if _, err := adjustAssigned(ctx, tx, s.WorkerID, l.ItemID, l.Quantity); err != nil {
				return err
			}
			if err := recordMovement(ctx, tx, model.Movement{
				ItemID:        l.ItemID,
				WorkerID:      &s.WorkerID,
				Reason:        model.MovementShipmentApproved,
				StockDelta:    -l.Quantity,
				ReservedDelta: -l.Quantity,
				AssignedDelta: l.Quantity,
				RefID:         &s.ID,
				CreatedBy:     approvedBy,
			}); err != nil {
				return err
			}
		}

		return moveShipment(ctx, tx, s, model.ShipmentApproved, `approved_at = CURRENT_TIMESTAMP`)
	})
	if err != nil {
		return nil, err
	}
	return GetShipment(ctx, db, id)
}

// RejectShipment closes a received shipment without crediting the worker.
// The reserved stock is released back to the central pool.
func RejectShipment(ctx context.Context, db *sql.DB, id int64, rejectedBy *int64) (*model.Shipment, error) {
	err := withTx(ctx, db, "shipment rejection", func(tx *sql.Tx) error {
		s, err := getShipment(ctx, tx, id)
		if err != nil {
			return err
		}
		if s == nil {
			return notFound("shipment %d not found", id)
		}
		if !s.Status.CanTransition(model.ShipmentRejected) {
			return invalidTransition(s.Status, model.ShipmentRejected)
		}

		for _, l := range s.Lines {
			if _, err := adjustStock(ctx, tx, l.ItemID, 0, -l.Quantity); err != nil {
				return err
			}
			if err := recordMovement(ctx, tx, model.Movement{
				ItemID:        l.ItemID,
				WorkerID:      &s.WorkerID,
				Reason:        model.MovementShipmentRejected,
				ReservedDelta: -l.Quantity,
				RefID:         &s.ID,
				CreatedBy:     rejectedBy,
			}); err != nil {
				return err
			}
		}

		return moveShipment(ctx, tx, s, model.ShipmentRejected, `rejected_at = CURRENT_TIMESTAMP`)
	})
	if err != nil {
		return nil, err
	}
	return GetShipment(ctx, db, id)
}

// ListShipments returns shipments, optionally filtered by status, newest first.
// Received shipments awaiting approval are ordered by receipt time.
func ListShipments(ctx context.Context, db *sql.DB, status model.ShipmentStatus) ([]model.Shipment, error) {
	switch {
	case status == "":
		return listShipments(ctx, db, shipmentSelect+` ORDER BY s.created_at DESC, s.id DESC`)
	case status == model.ShipmentReceived:
		return listShipments(ctx, db, shipmentSelect+` WHERE s.status = ? ORDER BY s.received_at DESC, s.id DESC`, status)
	case status.Valid():
		return listShipments(ctx, db, shipmentSelect+` WHERE s.status = ? ORDER BY s.created_at DESC, s.id DESC`, status)
	default:
		return nil, invalid("invalid status %q", status)
	}
}

// ListShipmentsForWorker returns a worker's shipments, newest first. Pending
// shipments have not left the warehouse yet and are only included on request.
func ListShipmentsForWorker(ctx context.Context, db *sql.DB, workerID int64, includePending bool) ([]model.Shipment, error) {
	if includePending {
		return listShipments(ctx, db, shipmentSelect+` WHERE s.worker_id = ? ORDER BY s.created_at DESC, s.id DESC`, workerID)
	}
	return listShipments(ctx, db,
		shipmentSelect+` WHERE s.worker_id = ? AND s.status <> ? ORDER BY s.created_at DESC, s.id DESC`,
		workerID, model.ShipmentPending,
	)
}

func listShipments(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.Shipment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing shipments: %w", err)
	}

	var shipments []model.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning shipment: %w", err)
		}
		shipments = append(shipments, *s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range shipments {
		if err := loadLines(ctx, db, &shipments[i]); err != nil {
			return nil, err
		}
	}
	return shipments, nil
}
