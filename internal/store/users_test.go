package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/fieldstock/internal/db"
	"github.com/erazemk/fieldstock/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "testuser", "hash123", model.RoleWorker)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Username != "testuser" {
		t.Errorf("expected username 'testuser', got %q", user.Username)
	}
	if user.Role != model.RoleWorker {
		t.Errorf("expected role 'worker', got %q", user.Role)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "testuser" {
		t.Errorf("expected username 'testuser', got %q", got.Username)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "dup", "hash", model.RoleWorker); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := CreateUser(ctx, database, "dup", "hash", model.RoleWorker); err == nil {
		t.Fatal("expected error for duplicate username")
	}
}

func TestGetUserByUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "alice", "hash", model.RoleAdmin)

	user, err := GetUserByUsername(ctx, database, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.Username != "alice" {
		t.Errorf("expected 'alice', got %q", user.Username)
	}

	missing, err := GetUserByUsername(ctx, database, "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestListUsers(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "a", "hash", model.RoleWorker)
	CreateUser(ctx, database, "b", "hash", model.RoleAdmin)

	users, err := ListUsers(ctx, database, "")
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}

	workers, err := ListUsers(ctx, database, model.RoleWorker)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(workers) != 1 || workers[0].Username != "a" {
		t.Errorf("expected only worker 'a', got %+v", workers)
	}
}

func TestUpdateUserProfile(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "profile", "hash", model.RoleWorker)
	if err := UpdateUserProfile(ctx, database, user.ID, "p@example.com", "Pia", "Novak"); err != nil {
		t.Fatalf("UpdateUserProfile: %v", err)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got.Email != "p@example.com" || got.FirstName != "Pia" || got.LastName != "Novak" {
		t.Errorf("profile not updated: %+v", got)
	}
}

func TestDeleteUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "deleteme", "hash", model.RoleWorker)
	if err := DeleteUser(ctx, database, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	users, _ := ListUsers(ctx, database, "")
	if len(users) != 0 {
		t.Errorf("expected 0 users after delete, got %d", len(users))
	}

	if err := DeleteUser(ctx, database, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}

	// The username is free again once the old account is gone.
	if _, err := CreateUser(ctx, database, "deleteme", "hash", model.RoleWorker); err != nil {
		t.Errorf("recreating deleted username: %v", err)
	}
}

func TestDeleteUserHoldingStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	worker := mustWorker(t, database, "holder")
	item := mustItem(t, database, "Gloves", 10)
	if _, err := SetAssignment(ctx, database, worker.ID, item.ID, 3, nil); err != nil {
		t.Fatalf("SetAssignment: %v", err)
	}

	if err := DeleteUser(ctx, database, worker.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteUserWithOpenShipment(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	worker := mustWorker(t, database, "courier-target")
	item := mustItem(t, database, "Tape", 10)
	if _, err := CreateShipments(ctx, database, []int64{worker.ID},
		[]model.ManifestLine{{ItemID: item.ID, Quantity: 2}}, nil); err != nil {
		t.Fatalf("CreateShipments: %v", err)
	}

	if err := DeleteUser(ctx, database, worker.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateUserPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "pwuser", "oldhash", model.RoleWorker)
	if err := UpdateUserPassword(ctx, database, user.ID, "newhash"); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}

	if err := UpdateUserPassword(ctx, database, 9999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found for missing user, got %v", err)
	}
}

func TestUpdateUserRole(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	worker := mustWorker(t, database, "promoted")
	item := mustItem(t, database, "Gloves", 10)

	if err := UpdateUser(ctx, database, worker.ID, "manager"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for unknown role, got %v", err)
	}

	if _, err := SetAssignment(ctx, database, worker.ID, item.ID, 1, nil); err != nil {
		t.Fatalf("SetAssignment: %v", err)
	}
	if err := UpdateUser(ctx, database, worker.ID, model.RoleAdmin); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error while holding stock, got %v", err)
	}

	if _, err := SetAssignment(ctx, database, worker.ID, item.ID, 0, nil); err != nil {
		t.Fatalf("SetAssignment: %v", err)
	}
	if err := UpdateUser(ctx, database, worker.ID, model.RoleAdmin); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	got, _ := GetUser(ctx, database, worker.ID)
	if got.Role != model.RoleAdmin {
		t.Errorf("expected role admin, got %q", got.Role)
	}

	if err := UpdateUser(ctx, database, 9999, model.RoleWorker); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
