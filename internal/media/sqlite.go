package media

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteStore keeps photos as blobs next to the ledger.
type SQLiteStore struct {
	DB *sql.DB
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	ref := NewRef(contentType)
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO photos (ref, data, mime) VALUES (?, ?, ?)`,
		ref, data, contentType,
	)
	if err != nil {
		return "", fmt.Errorf("storing photo: %w", err)
	}
	return ref, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, ref string) ([]byte, string, error) {
	if err := checkRef(ref); err != nil {
		return nil, "", err
	}

	var data []byte
	var contentType string
	err := s.DB.QueryRowContext(ctx,
		`SELECT data, mime FROM photos WHERE ref = ?`, ref,
	).Scan(&data, &contentType)
	if err == sql.ErrNoRows {
		return nil, "", fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting photo: %w", err)
	}
	return data, contentType, nil
}
