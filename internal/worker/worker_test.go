package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ohjeongjoo/informanager/internal/models"
	"github.com/ohjeongjoo/informanager/internal/store"
)

type fakeWorkerStore struct {
	events        []store.OutboxEvent
	devices       []store.Device
	offsetTime    time.Time
	offsetID      string
	notifications []store.Notification
	dlq           []string
}

func (f *fakeWorkerStore) ListOutboxEvents(ctx context.Context, after time.Time, afterID string, limit int) ([]store.OutboxEvent, error) {
	var out []store.OutboxEvent
	for _, ev := range f.events {
		if ev.CreatedAt.After(after) || (ev.CreatedAt.Equal(after) && ev.EventID > afterID) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeWorkerStore) GetWorkerOffset(ctx context.Context, name string) (time.Time, string, error) {
	return f.offsetTime, f.offsetID, nil
}

func (f *fakeWorkerStore) SetWorkerOffset(ctx context.Context, name string, eventTime time.Time, eventID string) error {
	f.offsetTime = eventTime
	f.offsetID = eventID
	return nil
}

func (f *fakeWorkerStore) RecordNotification(ctx context.Context, n store.Notification) error {
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeWorkerStore) PushDLQ(ctx context.Context, notificationID, reason string) error {
	f.dlq = append(f.dlq, notificationID)
	return nil
}

func (f *fakeWorkerStore) ListDevices(ctx context.Context, staffIDs []string, roles []string) ([]store.Device, error) {
	return f.devices, nil
}

func registeredEvent(t *testing.T, id string, createdAt time.Time, staffID, kind string) store.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"visitor_id":        "v-1",
		"visitor_name":      "김하나",
		"assigned_staff_id": staffID,
		"kind":              kind,
		"status":            models.StatusWaiting,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return store.OutboxEvent{
		EventID:   id,
		Type:      "visitor.registered",
		Payload:   payload,
		CreatedAt: createdAt,
	}
}

func TestRenderMessage(t *testing.T) {
	cases := []struct {
		eventType string
		kind      string
		status    string
		want      string
	}{
		{"visitor.registered", models.KindWalkin, models.StatusWaiting, "김하나 고객이 방문했습니다."},
		{"visitor.registered", models.KindReturning, models.StatusWaiting, "김하나 고객이 재방문했습니다."},
		{"visitor.reserved", models.KindReserved, models.StatusWaiting, "김하나 고객의 예약이 접수되었습니다."},
		{"visitor.confirmed", models.KindWalkin, models.StatusMeeting, "김하나 고객과의 상담이 시작되었습니다."},
		{"visitor.confirmed", models.KindWalkin, models.StatusCompleted, "김하나 고객과의 상담이 완료되었습니다."},
		{"visitor.unknown", models.KindWalkin, models.StatusWaiting, ""},
	}
	for _, tt := range cases {
		got := renderMessage(tt.eventType, payloadData{
			VisitorName: "김하나",
			Kind:        tt.kind,
			Status:      tt.status,
		})
		if got != tt.want {
			t.Fatalf("renderMessage(%q) = %q, want %q", tt.eventType, got, tt.want)
		}
	}
}

func TestRunAdvancesOffset(t *testing.T) {
	now := time.Now().UTC()
	st := &fakeWorkerStore{
		events: []store.OutboxEvent{
			registeredEvent(t, "00000000-0000-0000-0000-000000000001", now, "staff-1", models.KindWalkin),
			registeredEvent(t, "00000000-0000-0000-0000-000000000002", now.Add(time.Second), "staff-1", models.KindWalkin),
		},
		devices: []store.Device{{DeviceID: "d-1", StaffID: "staff-1", PushToken: "token-1"}},
	}
	w := New(st, Config{Provider: "noop"})

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if st.offsetID != "00000000-0000-0000-0000-000000000002" {
		t.Fatalf("offset not advanced, got %q", st.offsetID)
	}
	if len(st.notifications) != 4 {
		t.Fatalf("expected 4 notification records (pending+sent per event), got %d", len(st.notifications))
	}
	last := st.notifications[len(st.notifications)-1]
	if last.Status != "sent" {
		t.Fatalf("expected final status sent, got %q", last.Status)
	}

	// second run sees nothing new
	st.notifications = nil
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(st.notifications) != 0 {
		t.Fatalf("expected no redelivery, got %d records", len(st.notifications))
	}
}

func TestDeliverFailureHitsDLQ(t *testing.T) {
	now := time.Now().UTC()
	st := &fakeWorkerStore{
		events: []store.OutboxEvent{
			registeredEvent(t, "00000000-0000-0000-0000-000000000001", now, "staff-1", models.KindWalkin),
		},
		devices: []store.Device{{DeviceID: "d-1", StaffID: "staff-1", PushToken: "token-1"}},
	}
	w := New(st, Config{Provider: "fail", MaxAttempts: 2})

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(st.dlq) != 1 {
		t.Fatalf("expected 1 DLQ entry, got %d", len(st.dlq))
	}
	last := st.notifications[len(st.notifications)-1]
	if last.Status != "failed" || last.Attempts != 2 {
		t.Fatalf("unexpected final notification state: %+v", last)
	}
	// delivery failure must not block the offset
	if st.offsetID != "00000000-0000-0000-0000-000000000001" {
		t.Fatalf("offset not advanced after failure, got %q", st.offsetID)
	}
}

func TestRolesForEvent(t *testing.T) {
	if got := rolesForEvent("visitor.registered"); len(got) != 2 {
		t.Fatalf("expected admin and manager for registrations, got %v", got)
	}
	if got := rolesForEvent("visitor.confirmed"); len(got) != 1 || got[0] != models.RoleManager {
		t.Fatalf("expected manager only for confirmations, got %v", got)
	}
	if got := rolesForEvent("something.else"); got != nil {
		t.Fatalf("expected no roles for unknown events, got %v", got)
	}
}
