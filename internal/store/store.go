package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ohjeongjoo/informanager/internal/models"
)

type RegisterVisitorInput struct {
	Name           string
	Phone          string
	City           string
	District       string
	Gender         string
	AgeGroup       string
	HasReservation bool
	VisitedAt      time.Time
}

type RegisterReservationInput struct {
	Name         string
	Phone        string
	Total        string
	Headquarters string
	Team         string
	StaffName    string
	Position     string
	ExpectedAt   *time.Time
}

type ConfirmVisitorInput struct {
	VisitorID     string
	CallerStaffID string
	// TargetStatus defaults to meeting when empty.
	TargetStatus string
}

type ListVisitorsInput struct {
	Date   *time.Time
	Status string
	Page   int
	Limit  int
}

// SlotPatch is a validated partial update for a staff slot. Nil fields
// are left untouched.
type SlotPatch struct {
	Rank     *int
	Active   *bool
	Capacity *int
}

type CreateStaffInput struct {
	Username     string
	Password     string
	Name         string
	Phone        string
	Role         string
	Total        string
	Headquarters string
	Team         string
	Position     string
}

type StaffPatch struct {
	Name         *string
	Phone        *string
	Role         *string
	Total        *string
	Headquarters *string
	Team         *string
	Position     *string
	Active       *bool
}

type ListStaffInput struct {
	Role         string
	Total        string
	Headquarters string
	Team         string
	Page         int
	Limit        int
}

type AttendanceInput struct {
	Role         string
	Total        string
	Headquarters string
	Team         string
	// Date restricts the working count to staff whose last check-in
	// falls on that calendar day.
	Date *time.Time
}

type AttendanceSummary struct {
	Working    int            `json:"working"`
	NotWorking int            `json:"not_working"`
	Staff      []models.Staff `json:"staff"`
}

type CheckInInput struct {
	StaffID string
	Lat     *float64
	Lng     *float64
	At      time.Time
}

type OutboxEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type Notification struct {
	NotificationID string    `json:"notification_id"`
	StaffID        string    `json:"staff_id,omitempty"`
	Channel        string    `json:"channel"`
	Recipient      string    `json:"recipient"`
	Status         string    `json:"status"`
	Attempts       int       `json:"attempts"`
	LastError      string    `json:"last_error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Device struct {
	DeviceID  string    `json:"device_id"`
	StaffID   string    `json:"staff_id"`
	PushToken string    `json:"push_token"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
}

type VisitorStore interface {
	RegisterVisitor(ctx context.Context, input RegisterVisitorInput) (models.Visitor, error)
	RegisterReservation(ctx context.Context, input RegisterReservationInput) (models.Visitor, error)
	FindVisitor(ctx context.Context, name, phone string) (models.Visitor, bool, error)
	ConfirmVisitor(ctx context.Context, input ConfirmVisitorInput) (models.Visitor, error)
	UpdateVisitorStatus(ctx context.Context, visitorID, status string) (models.Visitor, error)
	ListVisitors(ctx context.Context, input ListVisitorsInput) ([]models.Visitor, int, error)
}

type SlotStore interface {
	ListSlots(ctx context.Context, includeInactive bool) ([]models.StaffSlot, error)
	NextAvailable(ctx context.Context) (models.StaffSlot, bool, error)
	InsertSlot(ctx context.Context, staffID string, rank int) (models.StaffSlot, error)
	UpdateSlot(ctx context.Context, slotID string, patch SlotPatch) (models.StaffSlot, error)
	DeleteSlot(ctx context.Context, slotID string) error
	ReplaceAll(ctx context.Context, staffIDs []string) ([]models.StaffSlot, error)
	AssignSlot(ctx context.Context, slotID string) error
	ReleaseSlot(ctx context.Context, slotID string) error
}

type StaffStore interface {
	Login(ctx context.Context, username, password string, ttl time.Duration) (models.Session, models.Staff, error)
	GetSession(ctx context.Context, sessionID string) (models.Session, models.Staff, error)
	CreateStaff(ctx context.Context, input CreateStaffInput) (models.Staff, error)
	GetStaff(ctx context.Context, staffID string) (models.Staff, error)
	FindStaffByNameAndOrgUnit(ctx context.Context, name, total, headquarters, team string) (models.Staff, error)
	ListStaff(ctx context.Context, input ListStaffInput) ([]models.Staff, int, error)
	UpdateStaff(ctx context.Context, staffID string, patch StaffPatch) (models.Staff, error)
	DeleteStaff(ctx context.Context, staffID string) error
	CheckIn(ctx context.Context, input CheckInInput) (models.Staff, error)
	Attendance(ctx context.Context, input AttendanceInput) (AttendanceSummary, error)
	CheckOut(ctx context.Context, staffID string, at time.Time) (models.Staff, error)
	RegisterDevice(ctx context.Context, staffID, pushToken, platform string) (Device, error)
	ListDevices(ctx context.Context, staffIDs []string, roles []string) ([]Device, error)
}

type OutboxStore interface {
	ListOutboxEvents(ctx context.Context, after time.Time, afterID string, limit int) ([]OutboxEvent, error)
	GetWorkerOffset(ctx context.Context, name string) (time.Time, string, error)
	SetWorkerOffset(ctx context.Context, name string, eventTime time.Time, eventID string) error
	RecordNotification(ctx context.Context, n Notification) error
	PushDLQ(ctx context.Context, notificationID, reason string) error
}

// Store is the full persistence surface consumed by the HTTP layer and
// the background workers.
type Store interface {
	VisitorStore
	SlotStore
	StaffStore
	OutboxStore
}
