package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS staff (
		staff_id UUID PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'staff',
		total TEXT NOT NULL,
		headquarters TEXT NOT NULL,
		team TEXT NOT NULL,
		position TEXT NOT NULL,
		is_working BOOLEAN NOT NULL DEFAULT FALSE,
		last_check_in TIMESTAMPTZ,
		last_check_out TIMESTAMPTZ,
		last_lat DOUBLE PRECISION,
		last_lng DOUBLE PRECISION,
		location_updated_at TIMESTAMPTZ,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		session_id UUID PRIMARY KEY,
		staff_id UUID NOT NULL REFERENCES staff(staff_id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS staff_slots (
		slot_id UUID PRIMARY KEY,
		staff_id UUID NOT NULL REFERENCES staff(staff_id),
		sequence_rank INT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		current_load INT NOT NULL DEFAULT 0,
		capacity INT NOT NULL DEFAULT 3,
		total TEXT NOT NULL DEFAULT '',
		headquarters TEXT NOT NULL DEFAULT '',
		team TEXT NOT NULL DEFAULT '',
		position TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (current_load >= 0),
		CHECK (capacity > 0),
		CHECK (current_load <= capacity)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS staff_slots_active_rank
		ON staff_slots (sequence_rank) WHERE active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS staff_slots_active_staff
		ON staff_slots (staff_id) WHERE active`,
	`CREATE INDEX IF NOT EXISTS staff_slots_rotation
		ON staff_slots (active, sequence_rank)`,
	`CREATE TABLE IF NOT EXISTS visitors (
		visitor_id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		name_key TEXT NOT NULL,
		phone_key TEXT NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		district TEXT NOT NULL DEFAULT '',
		gender TEXT NOT NULL DEFAULT '',
		age_group TEXT NOT NULL DEFAULT '',
		has_reservation BOOLEAN NOT NULL,
		visitor_kind TEXT NOT NULL,
		assigned_staff_id UUID REFERENCES staff(staff_id),
		reservation_total TEXT,
		reservation_headquarters TEXT,
		reservation_team TEXT,
		reservation_staff_name TEXT,
		reservation_position TEXT,
		reservation_expected_at TIMESTAMPTZ,
		status TEXT NOT NULL DEFAULT 'waiting',
		notification_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		visited_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS visitors_lookup_key
		ON visitors (name_key, phone_key, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS visitors_visited_at
		ON visitors (visited_at DESC)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		event_id UUID PRIMARY KEY,
		type TEXT NOT NULL,
		payload_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_events_created
		ON outbox_events (created_at, event_id)`,
	`CREATE TABLE IF NOT EXISTS staff_devices (
		device_id UUID PRIMARY KEY,
		staff_id UUID NOT NULL REFERENCES staff(staff_id) ON DELETE CASCADE,
		push_token TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (staff_id, push_token)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		notification_id UUID PRIMARY KEY,
		staff_id UUID,
		channel TEXT NOT NULL,
		recipient TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INT NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS notification_dlq (
		notification_id UUID PRIMARY KEY,
		reason TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS worker_offsets (
		name TEXT PRIMARY KEY,
		last_event_time TIMESTAMPTZ NOT NULL,
		last_event_id UUID NOT NULL
	)`,
}

// Migrate applies the schema. Statements are idempotent so it is safe to
// run at every startup and in integration tests.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
