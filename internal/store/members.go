package store

import (
	"context"
	"database/sql"

	"github.com/erazemk/fieldstock/internal/model"
)

// ListMembers returns every active worker with their holdings and last known
// position.
func ListMembers(ctx context.Context, db *sql.DB) ([]model.Member, error) {
	workers, err := ListUsers(ctx, db, model.RoleWorker)
	if err != nil {
		return nil, err
	}

	members := make([]model.Member, 0, len(workers))
	for _, w := range workers {
		m, err := buildMember(ctx, db, w)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, nil
}

// GetMember returns a single worker's member view, or nil if id is not an
// active worker.
func GetMember(ctx context.Context, db *sql.DB, id int64) (*model.Member, error) {
	u, err := getUser(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if !u.IsWorker() {
		return nil, nil
	}
	return buildMember(ctx, db, *u)
}

func buildMember(ctx context.Context, db *sql.DB, u model.User) (*model.Member, error) {
	assignments, err := listAssignments(ctx, db, u.ID)
	if err != nil {
		return nil, err
	}
	if assignments == nil {
		assignments = []model.Assignment{}
	}

	last, err := lastLocation(ctx, db, u.ID)
	if err != nil {
		return nil, err
	}

	return &model.Member{User: u, Assignments: assignments, LastLocation: last}, nil
}
