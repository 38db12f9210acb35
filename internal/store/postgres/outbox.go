package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ohjeongjoo/informanager/internal/models"
	"github.com/ohjeongjoo/informanager/internal/store"
)

// visitorEventPayload is what downstream consumers (realtime poller,
// notification worker) get to work with. Kept flat on purpose so the
// worker never has to re-read the visitor row.
type visitorEventPayload struct {
	VisitorID       string  `json:"visitor_id"`
	VisitorName     string  `json:"visitor_name"`
	AssignedStaffID *string `json:"assigned_staff_id,omitempty"`
	Kind            string  `json:"kind"`
	Status          string  `json:"status"`
	Reason          string  `json:"reason,omitempty"`
}

func insertVisitorEvent(ctx context.Context, tx pgx.Tx, eventType string, visitor models.Visitor, reason string) error {
	payload, err := json.Marshal(visitorEventPayload{
		VisitorID:       visitor.VisitorID,
		VisitorName:     visitor.Name,
		AssignedStaffID: visitor.AssignedStaffID,
		Kind:            visitor.VisitorKind,
		Status:          visitor.Status,
		Reason:          reason,
	})
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, type, payload_json)
		VALUES ($1, $2, $3)
	`, uuid.NewString(), eventType, payload)
	return err
}

// ListOutboxEvents pages through events strictly after the given
// (createdAt, eventID) position. The event ID tiebreak makes the cursor
// stable when several events share a timestamp.
func (s *Store) ListOutboxEvents(ctx context.Context, after time.Time, afterID string, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if afterID == "" {
		afterID = uuid.Nil.String()
	}
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, type, payload_json, created_at
		FROM outbox_events
		WHERE (created_at, event_id) > ($1, $2)
		ORDER BY created_at ASC, event_id ASC
		LIMIT $3
	`, after, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var ev store.OutboxEvent
		if err := rows.Scan(&ev.EventID, &ev.Type, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) GetWorkerOffset(ctx context.Context, name string) (time.Time, string, error) {
	var t time.Time
	var id string
	row := s.pool.QueryRow(ctx, `
		SELECT last_event_time, last_event_id FROM worker_offsets WHERE name = $1
	`, name)
	if err := row.Scan(&t, &id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, "", nil
		}
		return time.Time{}, "", err
	}
	return t, id, nil
}

func (s *Store) SetWorkerOffset(ctx context.Context, name string, eventTime time.Time, eventID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO worker_offsets (name, last_event_time, last_event_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET last_event_time = EXCLUDED.last_event_time,
			last_event_id = EXCLUDED.last_event_id
	`, name, eventTime, eventID)
	return err
}

func (s *Store) RecordNotification(ctx context.Context, n store.Notification) error {
	var staffID any
	if n.StaffID != "" {
		staffID = n.StaffID
	}
	var lastErr any
	if n.LastError != "" {
		lastErr = n.LastError
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (notification_id, staff_id, channel, recipient, status, attempts, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (notification_id) DO UPDATE
		SET status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			last_error = EXCLUDED.last_error
	`, n.NotificationID, staffID, n.Channel, n.Recipient, n.Status, n.Attempts, lastErr)
	return err
}

func (s *Store) PushDLQ(ctx context.Context, notificationID, reason string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_dlq (notification_id, reason)
		VALUES ($1, $2)
		ON CONFLICT (notification_id) DO NOTHING
	`, notificationID, reason)
	return err
}
