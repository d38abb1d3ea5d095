package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/fieldstock/internal/model"
)

const userColumns = `id, username, password_hash, email, first_name, last_name, role, created_at, deleted_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.FirstName, &u.LastName,
		&u.Role, &u.CreatedAt, &u.DeletedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func getUser(ctx context.Context, q querier, id int64) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// activeWorker returns the user if it is a non-deleted worker, or a not-found error.
func activeWorker(ctx context.Context, q querier, id int64) (*model.User, error) {
	u, err := getUser(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if !u.IsWorker() {
		return nil, notFound("worker %d not found", id)
	}
	return u, nil
}

// CreateUser creates a new user.
func CreateUser(ctx context.Context, db *sql.DB, username, passwordHash, role string) (*model.User, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	return getUser(ctx, db, id)
}

// GetUserByUsername returns an active user by username.
func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? AND deleted_at IS NULL`, username,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users, optionally filtered by role.
func ListUsers(ctx context.Context, db *sql.DB, role string) ([]model.User, error) {
	var rows *sql.Rows
	var err error

	if role != "" {
		rows, err = db.QueryContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL AND role = ? ORDER BY username`, role,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUser updates a user's role. A worker still holding assigned stock
// cannot be turned into an admin.
func UpdateUser(ctx context.Context, db *sql.DB, id int64, role string) error {
	if !model.ValidRole(role) {
		return invalid("invalid role %q", role)
	}

	return withTx(ctx, db, "user update", func(tx *sql.Tx) error {
		if role != model.RoleWorker {
			var held int
			err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(SUM(assigned_quantity), 0) FROM assignments WHERE worker_id = ?`, id,
			).Scan(&held)
			if err != nil {
				return fmt.Errorf("checking user assignments: %w", err)
			}
			if held > 0 {
				return invalid("cannot change role: user still holds %d assigned units", held)
			}
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE users SET role = ? WHERE id = ? AND deleted_at IS NULL`,
			role, id,
		)
		if err != nil {
			return fmt.Errorf("updating user: %w", err)
		}
		ok, err := expectOneRow(res)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("user %d not found", id)
		}
		return nil
	})
}

// UpdateUserProfile updates a user's contact details.
func UpdateUserProfile(ctx context.Context, db *sql.DB, id int64, email, firstName, lastName string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET email = ?, first_name = ?, last_name = ? WHERE id = ? AND deleted_at IS NULL`,
		email, firstName, lastName, id,
	)
	if err != nil {
		return fmt.Errorf("updating user profile: %w", err)
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	ok, err := expectOneRow(res)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("user %d not found", id)
	}
	return nil
}

// DeleteUser soft-deletes a user. Workers still holding assigned stock cannot
// be deleted; their items have to be returned first.
func DeleteUser(ctx context.Context, db *sql.DB, id int64) error {
	var held int
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(assigned_quantity), 0) FROM assignments WHERE worker_id = ?`, id,
	).Scan(&held)
	if err != nil {
		return fmt.Errorf("checking user assignments: %w", err)
	}
	if held > 0 {
		return invalid("cannot delete user: still holds %d assigned units", held)
	}

	var open int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shipments WHERE worker_id = ? AND status IN (?, ?, ?)`,
		id, model.ShipmentPending, model.ShipmentSent, model.ShipmentReceived,
	).Scan(&open)
	if err != nil {
		return fmt.Errorf("checking user shipments: %w", err)
	}
	if open > 0 {
		return invalid("cannot delete user: %d shipments still open", open)
	}

	res, err := db.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	ok, err := expectOneRow(res)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("user %d not found", id)
	}
	return nil
}
