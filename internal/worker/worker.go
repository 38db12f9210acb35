package worker

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ohjeongjoo/informanager/internal/models"
	"github.com/ohjeongjoo/informanager/internal/store"
)

const offsetName = "notifier"

// Worker drains the outbox and pushes visit notifications to staff
// devices. The assigned staff member is always targeted; admins and
// managers get a copy of registration events so the front desk stays
// informed.
type Worker struct {
	store       Store
	provider    Provider
	batchSize   int
	maxAttempts int
}

// Store is the slice of the persistence layer the worker needs.
type Store interface {
	ListOutboxEvents(ctx context.Context, after time.Time, afterID string, limit int) ([]store.OutboxEvent, error)
	GetWorkerOffset(ctx context.Context, name string) (time.Time, string, error)
	SetWorkerOffset(ctx context.Context, name string, eventTime time.Time, eventID string) error
	RecordNotification(ctx context.Context, n store.Notification) error
	PushDLQ(ctx context.Context, notificationID, reason string) error
	ListDevices(ctx context.Context, staffIDs []string, roles []string) ([]store.Device, error)
}

type Config struct {
	BatchSize   int
	MaxAttempts int
	Provider    string
}

type payloadData struct {
	VisitorID       string  `json:"visitor_id"`
	VisitorName     string  `json:"visitor_name"`
	AssignedStaffID *string `json:"assigned_staff_id"`
	Kind            string  `json:"kind"`
	Status          string  `json:"status"`
	Reason          string  `json:"reason"`
}

func New(st Store, cfg Config) *Worker {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Worker{
		store:       st,
		provider:    newProvider(cfg.Provider),
		batchSize:   batch,
		maxAttempts: maxAttempts,
	}
}

// Run performs one poll cycle. The offset only advances after every
// event in the batch has been attempted, so a crash mid-batch redelivers
// rather than drops.
func (w *Worker) Run(ctx context.Context) error {
	lastTime, lastID, err := w.store.GetWorkerOffset(ctx, offsetName)
	if err != nil {
		return err
	}

	events, err := w.store.ListOutboxEvents(ctx, lastTime, lastID, w.batchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		if err := w.processEvent(ctx, event); err != nil {
			log.Printf("notify process error: %v", err)
		}
		lastTime = event.CreatedAt
		lastID = event.EventID
	}

	if len(events) > 0 {
		if err := w.store.SetWorkerOffset(ctx, offsetName, lastTime, lastID); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) processEvent(ctx context.Context, event store.OutboxEvent) error {
	var payload payloadData
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}

	message := renderMessage(event.Type, payload)
	if message == "" {
		return nil
	}

	var staffIDs []string
	if payload.AssignedStaffID != nil && *payload.AssignedStaffID != "" {
		staffIDs = append(staffIDs, *payload.AssignedStaffID)
	}
	roles := rolesForEvent(event.Type)

	devices, err := w.store.ListDevices(ctx, staffIDs, roles)
	if err != nil {
		return err
	}

	for _, device := range devices {
		if err := w.deliver(ctx, device, message); err != nil {
			log.Printf("notify deliver error: %v", err)
		}
	}
	return nil
}

func (w *Worker) deliver(ctx context.Context, device store.Device, message string) error {
	notification := store.Notification{
		NotificationID: uuid.NewString(),
		StaffID:        device.StaffID,
		Channel:        "push",
		Recipient:      device.PushToken,
		Status:         "pending",
	}
	if err := w.store.RecordNotification(ctx, notification); err != nil {
		return err
	}

	var sendErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		notification.Attempts = attempt
		sendErr = w.provider.Send(ctx, message, device.PushToken)
		if sendErr == nil {
			notification.Status = "sent"
			notification.LastError = ""
			return w.store.RecordNotification(ctx, notification)
		}
		notification.Status = "failed"
		notification.LastError = sendErr.Error()
		if err := w.store.RecordNotification(ctx, notification); err != nil {
			return err
		}
	}
	return w.store.PushDLQ(ctx, notification.NotificationID, "max attempts reached")
}

func renderMessage(eventType string, payload payloadData) string {
	name := payload.VisitorName
	switch eventType {
	case "visitor.registered":
		if payload.Kind == models.KindReturning {
			return name + " 고객이 재방문했습니다."
		}
		return name + " 고객이 방문했습니다."
	case "visitor.reserved":
		return name + " 고객의 예약이 접수되었습니다."
	case "visitor.confirmed":
		if payload.Status == models.StatusCompleted {
			return name + " 고객과의 상담이 완료되었습니다."
		}
		return name + " 고객과의 상담이 시작되었습니다."
	default:
		return ""
	}
}

// rolesForEvent decides which roles get a copy beyond the assigned
// staff member. Status confirmations are between the staff member and
// the floor managers; registrations also wake the admin dashboard.
func rolesForEvent(eventType string) []string {
	switch {
	case strings.HasPrefix(eventType, "visitor.registered"), strings.HasPrefix(eventType, "visitor.reserved"):
		return []string{models.RoleAdmin, models.RoleManager}
	case strings.HasPrefix(eventType, "visitor.confirmed"):
		return []string{models.RoleManager}
	default:
		return nil
	}
}

func Start(ctx context.Context, interval time.Duration, w *Worker) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Run(ctx); err != nil {
				log.Printf("notify worker error: %v", err)
			}
		}
	}
}
