package models

import "time"

type Visitor struct {
	VisitorID             string       `json:"visitor_id"`
	Name                  string       `json:"name"`
	Phone                 string       `json:"phone"`
	City                  string       `json:"city,omitempty"`
	District              string       `json:"district,omitempty"`
	Gender                string       `json:"gender,omitempty"`
	AgeGroup              string       `json:"age_group,omitempty"`
	HasReservation        bool         `json:"has_reservation"`
	VisitorKind           string       `json:"visitor_kind"`
	AssignedStaffID       *string      `json:"assigned_staff_id,omitempty"`
	Reservation           *Reservation `json:"reservation,omitempty"`
	Status                string       `json:"status"`
	NotificationConfirmed bool         `json:"notification_confirmed"`
	VisitedAt             time.Time    `json:"visited_at"`
	CreatedAt             time.Time    `json:"created_at"`
}

type Reservation struct {
	Total        string     `json:"total"`
	Headquarters string     `json:"headquarters"`
	Team         string     `json:"team"`
	StaffName    string     `json:"staff_name"`
	Position     string     `json:"position"`
	ExpectedAt   *time.Time `json:"expected_at,omitempty"`
}

const (
	KindReserved  = "reserved"
	KindWalkin    = "walkin"
	KindReturning = "returning"
)

const (
	StatusWaiting   = "waiting"
	StatusMeeting   = "meeting"
	StatusCompleted = "completed"
)
