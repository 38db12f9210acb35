package models

import "time"

// StaffSlot is one staff member's position in the intake rotation.
// Active slots are scanned in ascending SequenceRank when a walk-in
// visitor needs an assignment.
type StaffSlot struct {
	SlotID       string    `json:"slot_id"`
	StaffID      string    `json:"staff_id"`
	StaffName    string    `json:"staff_name,omitempty"`
	SequenceRank int       `json:"sequence_rank"`
	Active       bool      `json:"active"`
	CurrentLoad  int       `json:"current_load"`
	Capacity     int       `json:"capacity"`
	Total        string    `json:"total,omitempty"`
	Headquarters string    `json:"headquarters,omitempty"`
	Team         string    `json:"team,omitempty"`
	Position     string    `json:"position,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

const DefaultSlotCapacity = 3
