package models

import "time"

type Staff struct {
	StaffID           string     `json:"staff_id"`
	Username          string     `json:"username"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone"`
	Role              string     `json:"role"`
	Total             string     `json:"total"`
	Headquarters      string     `json:"headquarters"`
	Team              string     `json:"team"`
	Position          string     `json:"position"`
	IsWorking         bool       `json:"is_working"`
	LastCheckIn       *time.Time `json:"last_check_in,omitempty"`
	LastCheckOut      *time.Time `json:"last_check_out,omitempty"`
	LastLat           *float64   `json:"last_lat,omitempty"`
	LastLng           *float64   `json:"last_lng,omitempty"`
	LocationUpdatedAt *time.Time `json:"location_updated_at,omitempty"`
	Active            bool       `json:"active"`
	CreatedAt         time.Time  `json:"created_at"`
}

type Session struct {
	SessionID string    `json:"session_id"`
	StaffID   string    `json:"staff_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)
