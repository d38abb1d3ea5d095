package model

import "testing"

func TestShipmentStatusCanTransition(t *testing.T) {
	all := []ShipmentStatus{ShipmentPending, ShipmentSent, ShipmentReceived, ShipmentApproved, ShipmentRejected}
	allowed := map[[2]ShipmentStatus]bool{
		{ShipmentPending, ShipmentSent}:      true,
		{ShipmentSent, ShipmentReceived}:     true,
		{ShipmentReceived, ShipmentApproved}: true,
		{ShipmentReceived, ShipmentRejected}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]ShipmentStatus{from, to}]
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestShipmentStatusTerminal(t *testing.T) {
	tests := []struct {
		status   ShipmentStatus
		terminal bool
	}{
		{ShipmentPending, false},
		{ShipmentSent, false},
		{ShipmentReceived, false},
		{ShipmentApproved, true},
		{ShipmentRejected, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestShipmentStatusValid(t *testing.T) {
	if !ShipmentReceived.Valid() {
		t.Error("expected received to be valid")
	}
	if ShipmentStatus("lost").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}
