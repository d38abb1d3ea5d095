package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/fieldstock/internal/model"
	"github.com/shopspring/decimal"
)

// DefaultLocationLimit caps a worker's location history when no limit is given.
const DefaultLocationLimit = 100

const locationSelect = `SELECT l.id, l.worker_id, l.latitude, l.longitude, l.recorded_at, u.username AS worker_name
 FROM worker_locations l
 JOIN users u ON u.id = l.worker_id`

func scanLocation(row interface{ Scan(...any) error }) (*model.Location, error) {
	l := &model.Location{}
	if err := row.Scan(&l.ID, &l.WorkerID, &l.Latitude, &l.Longitude, &l.RecordedAt, &l.WorkerName); err != nil {
		return nil, err
	}
	return l, nil
}

// SaveLocation appends a position sample for a worker.
func SaveLocation(ctx context.Context, db *sql.DB, workerID int64, lat, lng decimal.Decimal) (*model.Location, error) {
	if !model.ValidCoordinates(lat, lng) {
		return nil, invalid("coordinates out of range: %s, %s", lat, lng)
	}
	if _, err := activeWorker(ctx, db, workerID); err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO worker_locations (worker_id, latitude, longitude) VALUES (?, ?, ?)`,
		workerID, lat.String(), lng.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("saving location: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting location id: %w", err)
	}

	l, err := scanLocation(db.QueryRowContext(ctx, locationSelect+` WHERE l.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("getting location: %w", err)
	}
	return l, nil
}

// LatestLocations returns the newest sample of every active worker that has
// reported at least once.
func LatestLocations(ctx context.Context, db *sql.DB) ([]model.Location, error) {
	return listLocations(ctx, db,
		locationSelect+`
		 WHERE u.deleted_at IS NULL
		   AND l.id = (SELECT id FROM worker_locations
		               WHERE worker_id = l.worker_id
		               ORDER BY recorded_at DESC, id DESC LIMIT 1)
		 ORDER BY u.username`,
	)
}

// ListLocationsForWorker returns a worker's samples, newest first.
func ListLocationsForWorker(ctx context.Context, db *sql.DB, workerID int64, limit int) ([]model.Location, error) {
	if limit <= 0 {
		limit = DefaultLocationLimit
	}
	return listLocations(ctx, db,
		locationSelect+` WHERE l.worker_id = ? ORDER BY l.recorded_at DESC, l.id DESC LIMIT ?`,
		workerID, limit,
	)
}

func lastLocation(ctx context.Context, q querier, workerID int64) (*model.Location, error) {
	l, err := scanLocation(q.QueryRowContext(ctx,
		locationSelect+` WHERE l.worker_id = ? ORDER BY l.recorded_at DESC, l.id DESC LIMIT 1`, workerID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting last location: %w", err)
	}
	return l, nil
}

func listLocations(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.Location, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locations = append(locations, *l)
	}
	return locations, rows.Err()
}
