package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ohjeongjoo/informanager/internal/models"
	"github.com/ohjeongjoo/informanager/internal/store"
)

// RegisterVisitor creates a visitor record and resolves its staff
// assignment in a single transaction. A returning visitor inherits the
// staff member from their most recent prior visit; a walk-in takes the
// next slot in the rotation. Registration succeeds even when no slot has
// spare capacity: the visitor is simply left unassigned.
func (s *Store) RegisterVisitor(ctx context.Context, input store.RegisterVisitorInput) (models.Visitor, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Visitor{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	nameKey := store.NameKey(input.Name)
	phoneKey := store.PhoneKey(input.Phone)

	prior, found, err := findPriorVisitor(ctx, tx, nameKey, phoneKey)
	if err != nil {
		return models.Visitor{}, err
	}

	visitedAt := input.VisitedAt
	if visitedAt.IsZero() {
		visitedAt = time.Now().UTC()
	}

	visitor := models.Visitor{
		VisitorID:      uuid.NewString(),
		Name:           input.Name,
		Phone:          input.Phone,
		City:           input.City,
		District:       input.District,
		Gender:         input.Gender,
		AgeGroup:       input.AgeGroup,
		HasReservation: input.HasReservation,
		Status:         models.StatusWaiting,
		VisitedAt:      visitedAt,
	}

	reason := "new_visitor"
	if found {
		visitor.VisitorKind = models.KindReturning
		visitor.AssignedStaffID = prior.AssignedStaffID
		reason = "returning_visitor"
	} else {
		visitor.VisitorKind = models.KindWalkin
		slot, ok, err2 := takeNextSlot(ctx, tx)
		if err2 != nil {
			err = err2
			return models.Visitor{}, err
		}
		if ok {
			staffID := slot.StaffID
			visitor.AssignedStaffID = &staffID
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO visitors (
			visitor_id, name, phone, name_key, phone_key, city, district, gender, age_group,
			has_reservation, visitor_kind, assigned_staff_id, status, visited_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at
	`, visitor.VisitorID, visitor.Name, visitor.Phone, nameKey, phoneKey,
		visitor.City, visitor.District, visitor.Gender, visitor.AgeGroup,
		visitor.HasReservation, visitor.VisitorKind, visitor.AssignedStaffID,
		visitor.Status, visitor.VisitedAt)
	if err = row.Scan(&visitor.CreatedAt); err != nil {
		return models.Visitor{}, err
	}

	if err = insertVisitorEvent(ctx, tx, "visitor.registered", visitor, reason); err != nil {
		return models.Visitor{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Visitor{}, err
	}
	return visitor, nil
}

// RegisterReservation records an admin-entered reservation. The staff
// member is resolved by name within their org unit rather than by the
// rotation.
func (s *Store) RegisterReservation(ctx context.Context, input store.RegisterReservationInput) (models.Visitor, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Visitor{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var staffID string
	row := tx.QueryRow(ctx, `
		SELECT staff_id
		FROM staff
		WHERE name = $1 AND total = $2 AND headquarters = $3 AND team = $4 AND active = TRUE
	`, input.StaffName, input.Total, input.Headquarters, input.Team)
	if err = row.Scan(&staffID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrStaffNotFound
		}
		return models.Visitor{}, err
	}

	now := time.Now().UTC()
	visitor := models.Visitor{
		VisitorID:       uuid.NewString(),
		Name:            input.Name,
		Phone:           input.Phone,
		HasReservation:  true,
		VisitorKind:     models.KindReserved,
		AssignedStaffID: &staffID,
		Reservation: &models.Reservation{
			Total:        input.Total,
			Headquarters: input.Headquarters,
			Team:         input.Team,
			StaffName:    input.StaffName,
			Position:     input.Position,
			ExpectedAt:   input.ExpectedAt,
		},
		Status:    models.StatusWaiting,
		VisitedAt: now,
	}

	row = tx.QueryRow(ctx, `
		INSERT INTO visitors (
			visitor_id, name, phone, name_key, phone_key,
			has_reservation, visitor_kind, assigned_staff_id,
			reservation_total, reservation_headquarters, reservation_team,
			reservation_staff_name, reservation_position, reservation_expected_at,
			status, visited_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at
	`, visitor.VisitorID, visitor.Name, visitor.Phone,
		store.NameKey(input.Name), store.PhoneKey(input.Phone),
		true, visitor.VisitorKind, staffID,
		input.Total, input.Headquarters, input.Team,
		input.StaffName, input.Position, input.ExpectedAt,
		visitor.Status, visitor.VisitedAt)
	if err = row.Scan(&visitor.CreatedAt); err != nil {
		return models.Visitor{}, err
	}

	if err = insertVisitorEvent(ctx, tx, "visitor.reserved", visitor, "reservation"); err != nil {
		return models.Visitor{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Visitor{}, err
	}
	return visitor, nil
}

func (s *Store) FindVisitor(ctx context.Context, name, phone string) (models.Visitor, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+visitorColumns+`
		FROM visitors
		WHERE name_key = $1 AND phone_key = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, store.NameKey(name), store.PhoneKey(phone))
	visitor, err := scanVisitor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Visitor{}, false, nil
		}
		return models.Visitor{}, false, err
	}
	return visitor, true, nil
}

// ConfirmVisitor is the staff acknowledgement of a visitor handoff. Only
// the assigned staff member may confirm; completing a visit releases one
// unit of that staff member's slot load.
func (s *Store) ConfirmVisitor(ctx context.Context, input store.ConfirmVisitorInput) (models.Visitor, error) {
	target := input.TargetStatus
	if target == "" {
		target = models.StatusMeeting
	}
	if target != models.StatusMeeting && target != models.StatusCompleted {
		return models.Visitor{}, store.ErrInvalidState
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Visitor{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT `+visitorColumns+`
		FROM visitors
		WHERE visitor_id = $1
		FOR UPDATE
	`, input.VisitorID)
	visitor, err := scanVisitor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrVisitorNotFound
		}
		return models.Visitor{}, err
	}

	if visitor.AssignedStaffID == nil || *visitor.AssignedStaffID != input.CallerStaffID {
		err = store.ErrForbidden
		return models.Visitor{}, err
	}
	if !store.ValidTransition(visitor.Status, target) {
		err = store.ErrInvalidState
		return models.Visitor{}, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE visitors
		SET status = $1,
			notification_confirmed = TRUE
		WHERE visitor_id = $2
	`, target, input.VisitorID); err != nil {
		return models.Visitor{}, err
	}
	visitor.Status = target
	visitor.NotificationConfirmed = true

	if target == models.StatusCompleted {
		if err = releaseStaffLoad(ctx, tx, *visitor.AssignedStaffID); err != nil {
			return models.Visitor{}, err
		}
	}

	if err = insertVisitorEvent(ctx, tx, "visitor.confirmed", visitor, "confirmed_by_staff"); err != nil {
		return models.Visitor{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Visitor{}, err
	}
	return visitor, nil
}

// UpdateVisitorStatus is the admin status edit. It obeys the same state
// machine as staff confirmation but skips the assigned-staff guard and
// does not touch notification_confirmed.
func (s *Store) UpdateVisitorStatus(ctx context.Context, visitorID, status string) (models.Visitor, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Visitor{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT `+visitorColumns+`
		FROM visitors
		WHERE visitor_id = $1
		FOR UPDATE
	`, visitorID)
	visitor, err := scanVisitor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrVisitorNotFound
		}
		return models.Visitor{}, err
	}

	if !store.ValidTransition(visitor.Status, status) {
		err = store.ErrInvalidState
		return models.Visitor{}, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE visitors SET status = $1 WHERE visitor_id = $2
	`, status, visitorID); err != nil {
		return models.Visitor{}, err
	}
	visitor.Status = status

	if status == models.StatusCompleted && visitor.AssignedStaffID != nil {
		if err = releaseStaffLoad(ctx, tx, *visitor.AssignedStaffID); err != nil {
			return models.Visitor{}, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Visitor{}, err
	}
	return visitor, nil
}

func (s *Store) ListVisitors(ctx context.Context, input store.ListVisitorsInput) ([]models.Visitor, int, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	page := input.Page
	if page <= 0 {
		page = 1
	}

	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE TRUE`
	countQuery := `SELECT COUNT(1) FROM visitors WHERE TRUE`
	var args []any
	if input.Date != nil {
		start := input.Date.Truncate(24 * time.Hour)
		end := start.Add(24 * time.Hour)
		args = append(args, start, end)
		clause := ` AND visited_at >= $1 AND visited_at < $2`
		query += clause
		countQuery += clause
	}
	if input.Status != "" {
		args = append(args, input.Status)
		clause := ` AND status = $` + strconv.Itoa(len(args))
		query += clause
		countQuery += clause
	}

	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, (page-1)*limit)
	query += ` ORDER BY visited_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var visitors []models.Visitor
	for rows.Next() {
		visitor, err := scanVisitor(rows)
		if err != nil {
			return nil, 0, err
		}
		visitors = append(visitors, visitor)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return visitors, total, nil
}

func findPriorVisitor(ctx context.Context, tx pgx.Tx, nameKey, phoneKey string) (models.Visitor, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+visitorColumns+`
		FROM visitors
		WHERE name_key = $1 AND phone_key = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, nameKey, phoneKey)
	visitor, err := scanVisitor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Visitor{}, false, nil
		}
		return models.Visitor{}, false, err
	}
	return visitor, true, nil
}

