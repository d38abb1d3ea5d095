package model

import "time"

// UsageLog is a worker's claim of having consumed some of an assigned item.
// It is created pending and can only move to approved.
type UsageLog struct {
	ID           int64      `json:"id"`
	WorkerID     int64      `json:"worker_id"`
	ItemID       int64      `json:"item_id"`
	QuantityUsed int        `json:"quantity_used"`
	PhotoRef     string     `json:"photo_ref"`
	IsApproved   bool       `json:"is_approved"`
	Timestamp    time.Time  `json:"timestamp"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	ApprovedBy   *int64     `json:"approved_by,omitempty"`

	// Joined fields (not always populated).
	WorkerName string `json:"worker_name,omitempty"`
	ItemName   string `json:"item_name,omitempty"`
}
