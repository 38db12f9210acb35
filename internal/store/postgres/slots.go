package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ohjeongjoo/informanager/internal/models"
	"github.com/ohjeongjoo/informanager/internal/store"
)

func (s *Store) ListSlots(ctx context.Context, includeInactive bool) ([]models.StaffSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM staff_slots s
		JOIN staff u ON u.staff_id = s.staff_id
	`
	if !includeInactive {
		query += ` WHERE s.active = TRUE`
	}
	query += ` ORDER BY s.sequence_rank ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []models.StaffSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

// NextAvailable is the read-only view of the rotation: the active slot
// with the lowest sequence rank that still has spare capacity. The write
// path does not use this; see takeNextSlot.
func (s *Store) NextAvailable(ctx context.Context) (models.StaffSlot, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM staff_slots s
		JOIN staff u ON u.staff_id = s.staff_id
		WHERE s.active = TRUE AND s.current_load < s.capacity
		ORDER BY s.sequence_rank ASC
		LIMIT 1
	`)
	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.StaffSlot{}, false, nil
		}
		return models.StaffSlot{}, false, err
	}
	return slot, true, nil
}

func (s *Store) InsertSlot(ctx context.Context, staffID string, rank int) (models.StaffSlot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.StaffSlot{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	staff, err := getStaffTx(ctx, tx, staffID)
	if err != nil {
		return models.StaffSlot{}, err
	}

	if err = checkRankFree(ctx, tx, rank, ""); err != nil {
		return models.StaffSlot{}, err
	}

	var exists bool
	row := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM staff_slots WHERE staff_id = $1 AND active = TRUE
		)
	`, staffID)
	if err = row.Scan(&exists); err != nil {
		return models.StaffSlot{}, err
	}
	if exists {
		err = store.ErrDuplicateStaff
		return models.StaffSlot{}, err
	}

	slot := models.StaffSlot{
		SlotID:       uuid.NewString(),
		StaffID:      staffID,
		StaffName:    staff.Name,
		SequenceRank: rank,
		Active:       true,
		Capacity:     models.DefaultSlotCapacity,
		Total:        staff.Total,
		Headquarters: staff.Headquarters,
		Team:         staff.Team,
		Position:     staff.Position,
	}
	row = tx.QueryRow(ctx, `
		INSERT INTO staff_slots (slot_id, staff_id, sequence_rank, capacity, total, headquarters, team, position)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, slot.SlotID, slot.StaffID, slot.SequenceRank, slot.Capacity,
		slot.Total, slot.Headquarters, slot.Team, slot.Position)
	if err = row.Scan(&slot.CreatedAt); err != nil {
		return models.StaffSlot{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.StaffSlot{}, err
	}
	return slot, nil
}

// UpdateSlot applies a validated patch. Rank collisions with another
// active slot are rejected; deactivating and reactivating keeps the load
// history intact.
func (s *Store) UpdateSlot(ctx context.Context, slotID string, patch store.SlotPatch) (models.StaffSlot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.StaffSlot{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM staff_slots s
		JOIN staff u ON u.staff_id = s.staff_id
		WHERE s.slot_id = $1
		FOR UPDATE OF s
	`, slotID)
	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrSlotNotFound
		}
		return models.StaffSlot{}, err
	}

	if patch.Rank != nil {
		slot.SequenceRank = *patch.Rank
	}
	if patch.Active != nil {
		slot.Active = *patch.Active
	}
	if patch.Capacity != nil {
		if *patch.Capacity < 1 {
			err = store.ErrInvalidState
			return models.StaffSlot{}, err
		}
		slot.Capacity = *patch.Capacity
	}

	if slot.Active {
		if err = checkRankFree(ctx, tx, slot.SequenceRank, slotID); err != nil {
			return models.StaffSlot{}, err
		}
	}

	if _, err = tx.Exec(ctx, `
		UPDATE staff_slots
		SET sequence_rank = $1,
			active = $2,
			capacity = $3,
			updated_at = NOW()
		WHERE slot_id = $4
	`, slot.SequenceRank, slot.Active, slot.Capacity, slotID); err != nil {
		return models.StaffSlot{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.StaffSlot{}, err
	}
	return slot, nil
}

func (s *Store) DeleteSlot(ctx context.Context, slotID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM staff_slots WHERE slot_id = $1`, slotID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrSlotNotFound
	}
	return nil
}

// ReplaceAll atomically rebuilds the rotation: every slot is dropped and
// the given staff are inserted with ranks 1..N in order. Unknown staff
// fail the whole batch.
func (s *Store) ReplaceAll(ctx context.Context, staffIDs []string) ([]models.StaffSlot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM staff_slots`); err != nil {
		return nil, err
	}

	slots := make([]models.StaffSlot, 0, len(staffIDs))
	for i, staffID := range staffIDs {
		staff, err2 := getStaffTx(ctx, tx, staffID)
		if err2 != nil {
			err = err2
			return nil, err
		}
		slot := models.StaffSlot{
			SlotID:       uuid.NewString(),
			StaffID:      staffID,
			StaffName:    staff.Name,
			SequenceRank: i + 1,
			Active:       true,
			Capacity:     models.DefaultSlotCapacity,
			Total:        staff.Total,
			Headquarters: staff.Headquarters,
			Team:         staff.Team,
			Position:     staff.Position,
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO staff_slots (slot_id, staff_id, sequence_rank, capacity, total, headquarters, team, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING created_at
		`, slot.SlotID, slot.StaffID, slot.SequenceRank, slot.Capacity,
			slot.Total, slot.Headquarters, slot.Team, slot.Position)
		if err = row.Scan(&slot.CreatedAt); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return slots, nil
}

// AssignSlot is the capacity-guarded increment. The condition lives in
// the UPDATE itself, so two concurrent callers can never both take a
// slot's last unit of capacity.
func (s *Store) AssignSlot(ctx context.Context, slotID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE staff_slots
		SET current_load = current_load + 1,
			updated_at = NOW()
		WHERE slot_id = $1 AND active = TRUE AND current_load < capacity
	`, slotID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var active bool
	row := s.pool.QueryRow(ctx, `SELECT active FROM staff_slots WHERE slot_id = $1`, slotID)
	if err := row.Scan(&active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrSlotNotFound
		}
		return err
	}
	if !active {
		return store.ErrSlotInactive
	}
	return store.ErrCapacityExceeded
}

func (s *Store) ReleaseSlot(ctx context.Context, slotID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE staff_slots
		SET current_load = GREATEST(current_load - 1, 0),
			updated_at = NOW()
		WHERE slot_id = $1
	`, slotID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrSlotNotFound
	}
	return nil
}

// takeNextSlot picks and claims the next slot in the rotation within the
// caller's transaction. Selection and increment are one statement;
// SKIP LOCKED keeps concurrent registrations from serializing on a slot
// another transaction is already claiming.
func takeNextSlot(ctx context.Context, tx pgx.Tx) (models.StaffSlot, bool, error) {
	row := tx.QueryRow(ctx, `
		WITH next_slot AS (
			SELECT slot_id
			FROM staff_slots
			WHERE active = TRUE AND current_load < capacity
			ORDER BY sequence_rank ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE staff_slots s
		SET current_load = s.current_load + 1,
			updated_at = NOW()
		FROM next_slot
		WHERE s.slot_id = next_slot.slot_id
		RETURNING s.slot_id, s.staff_id, s.sequence_rank, s.current_load, s.capacity
	`)
	var slot models.StaffSlot
	slot.Active = true
	if err := row.Scan(&slot.SlotID, &slot.StaffID, &slot.SequenceRank, &slot.CurrentLoad, &slot.Capacity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.StaffSlot{}, false, nil
		}
		return models.StaffSlot{}, false, err
	}
	return slot, true, nil
}

// releaseStaffLoad decrements the load on a staff member's slot when one
// of their visitors completes. Staff whose slot was deleted or never
// existed are a no-op: the visit history stays valid either way.
func releaseStaffLoad(ctx context.Context, tx pgx.Tx, staffID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE staff_slots
		SET current_load = GREATEST(current_load - 1, 0),
			updated_at = NOW()
		WHERE staff_id = $1
	`, staffID)
	return err
}

func checkRankFree(ctx context.Context, tx pgx.Tx, rank int, excludeSlotID string) error {
	var exists bool
	row := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM staff_slots
			WHERE sequence_rank = $1 AND active = TRUE AND slot_id <> $2
		)
	`, rank, excludeSlotID)
	if err := row.Scan(&exists); err != nil {
		return err
	}
	if exists {
		return store.ErrDuplicateRank
	}
	return nil
}

func getStaffTx(ctx context.Context, tx pgx.Tx, staffID string) (models.Staff, error) {
	var staff models.Staff
	row := tx.QueryRow(ctx, `
		SELECT staff_id, name, total, headquarters, team, position
		FROM staff
		WHERE staff_id = $1 AND active = TRUE
	`, staffID)
	if err := row.Scan(&staff.StaffID, &staff.Name, &staff.Total, &staff.Headquarters, &staff.Team, &staff.Position); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Staff{}, store.ErrStaffNotFound
		}
		return models.Staff{}, err
	}
	return staff, nil
}
