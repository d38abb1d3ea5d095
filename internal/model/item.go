package model

import "time"

// Item is a stock line in the central warehouse. TotalQuantity is the number
// of units still held centrally; ReservedQuantity is the part of it promised
// to courier shipments that have not been approved or rejected yet.
type Item struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	TotalQuantity    int        `json:"total_quantity"`
	ReservedQuantity int        `json:"reserved_quantity"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// Available returns the quantity that can still be assigned or shipped.
func (i *Item) Available() int {
	return i.TotalQuantity - i.ReservedQuantity
}

// Assignment is the quantity of an item currently held by a worker.
type Assignment struct {
	ID               int64     `json:"id"`
	WorkerID         int64     `json:"worker_id"`
	ItemID           int64     `json:"item_id"`
	AssignedQuantity int       `json:"assigned_quantity"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	ItemName   string `json:"item_name,omitempty"`
	WorkerName string `json:"worker_name,omitempty"`
}

// Movement reasons recorded in the stock journal.
const (
	MovementItemCreated        = "item_created"
	MovementItemUpdated        = "item_updated"
	MovementStockAdjusted      = "stock_adjusted"
	MovementAssignmentSet      = "assignment_set"
	MovementAssignmentAdjusted = "assignment_adjusted"
	MovementAssignmentOverride = "assignment_override"
	MovementUsageApproved      = "usage_approved"
	MovementShipmentReserved   = "shipment_reserved"
	MovementShipmentApproved   = "shipment_approved"
	MovementShipmentRejected   = "shipment_rejected"
)

// Movement is one journal entry describing how a ledger mutation moved
// quantity between the stock, reserved and assigned pools.
type Movement struct {
	ID            int64     `json:"id"`
	ItemID        int64     `json:"item_id"`
	WorkerID      *int64    `json:"worker_id,omitempty"`
	Reason        string    `json:"reason"`
	StockDelta    int       `json:"stock_delta"`
	ReservedDelta int       `json:"reserved_delta"`
	AssignedDelta int       `json:"assigned_delta"`
	RefID         *int64    `json:"ref_id,omitempty"`
	CreatedBy     *int64    `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	// Joined fields (not always populated).
	ItemName   string `json:"item_name,omitempty"`
	WorkerName string `json:"worker_name,omitempty"`
}
