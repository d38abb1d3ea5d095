package model

import "testing"

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role     string
		minimum  string
		expected bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleWorker, true},
		{RoleWorker, RoleAdmin, false},
		{RoleWorker, RoleWorker, true},
		// Unknown roles fail-closed.
		{"unknown", RoleWorker, false},
		{RoleAdmin, "unknown", false},
		{"", "", false},
		{"", RoleWorker, false},
	}

	for _, tt := range tests {
		got := RoleAtLeast(tt.role, tt.minimum)
		if got != tt.expected {
			t.Errorf("RoleAtLeast(%q, %q) = %v, want %v", tt.role, tt.minimum, got, tt.expected)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}

func TestIsWorker(t *testing.T) {
	var nilUser *User
	if nilUser.IsWorker() {
		t.Error("nil user must not be a worker")
	}
	if (&User{Role: RoleAdmin}).IsWorker() {
		t.Error("admin must not be a worker")
	}
	if !(&User{Role: RoleWorker}).IsWorker() {
		t.Error("expected active worker")
	}
}
