package model

import "time"

// ShipmentStatus is the lifecycle state of a courier shipment.
type ShipmentStatus string

// Shipment statuses.
const (
	ShipmentPending  ShipmentStatus = "pending"
	ShipmentSent     ShipmentStatus = "sent"
	ShipmentReceived ShipmentStatus = "received"
	ShipmentApproved ShipmentStatus = "approved"
	ShipmentRejected ShipmentStatus = "rejected"
)

// shipmentTransitions lists the only forward moves a shipment can make.
var shipmentTransitions = map[ShipmentStatus][]ShipmentStatus{
	ShipmentPending:  {ShipmentSent},
	ShipmentSent:     {ShipmentReceived},
	ShipmentReceived: {ShipmentApproved, ShipmentRejected},
}

// Valid reports whether s is a known status.
func (s ShipmentStatus) Valid() bool {
	switch s {
	case ShipmentPending, ShipmentSent, ShipmentReceived, ShipmentApproved, ShipmentRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s ShipmentStatus) Terminal() bool {
	return s == ShipmentApproved || s == ShipmentRejected
}

// CanTransition reports whether a shipment in status s may move to next.
func (s ShipmentStatus) CanTransition(next ShipmentStatus) bool {
	for _, allowed := range shipmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Shipment is a courier delivery of manifest lines from central stock to one worker.
type Shipment struct {
	ID               int64          `json:"id"`
	WorkerID         int64          `json:"worker_id"`
	Status           ShipmentStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	CreatedBy        *int64         `json:"created_by,omitempty"`
	SentAt           *time.Time     `json:"sent_at"`
	ReceivedAt       *time.Time     `json:"received_at"`
	ReceivedQuantity *int           `json:"received_quantity"`
	ReceivedPhoto    string         `json:"received_photo,omitempty"`
	ApprovedAt       *time.Time     `json:"approved_at"`
	RejectedAt       *time.Time     `json:"rejected_at,omitempty"`
	Lines            []ShipmentLine `json:"items"`

	// Joined fields (not always populated).
	WorkerName string `json:"worker_name,omitempty"`
}

// ShipmentLine is one manifest entry. Lines never change after creation.
type ShipmentLine struct {
	ID         int64  `json:"id"`
	ShipmentID int64  `json:"shipment_id"`
	ItemID     int64  `json:"item_id"`
	Quantity   int    `json:"quantity"`
	ItemName   string `json:"item_name,omitempty"`
}

// ManifestLine is a requested (item, quantity) pair for a new shipment.
type ManifestLine struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}
