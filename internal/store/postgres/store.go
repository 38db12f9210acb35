package postgres

import (
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ohjeongjoo/informanager/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const visitorColumns = `visitor_id, name, phone, city, district, gender, age_group,
	has_reservation, visitor_kind, assigned_staff_id,
	reservation_total, reservation_headquarters, reservation_team,
	reservation_staff_name, reservation_position, reservation_expected_at,
	status, notification_confirmed, visited_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisitor(row rowScanner) (models.Visitor, error) {
	var v models.Visitor
	var assignedNull sql.NullString
	var resTotal, resHQ, resTeam, resStaff, resPosition sql.NullString
	var resExpected sql.NullTime
	if err := row.Scan(
		&v.VisitorID, &v.Name, &v.Phone, &v.City, &v.District, &v.Gender, &v.AgeGroup,
		&v.HasReservation, &v.VisitorKind, &assignedNull,
		&resTotal, &resHQ, &resTeam, &resStaff, &resPosition, &resExpected,
		&v.Status, &v.NotificationConfirmed, &v.VisitedAt, &v.CreatedAt,
	); err != nil {
		return models.Visitor{}, err
	}
	v.AssignedStaffID = nullStringPtr(assignedNull)
	if resTotal.Valid || resStaff.Valid {
		v.Reservation = &models.Reservation{
			Total:        resTotal.String,
			Headquarters: resHQ.String,
			Team:         resTeam.String,
			StaffName:    resStaff.String,
			Position:     resPosition.String,
			ExpectedAt:   nullTimePtr(resExpected),
		}
	}
	return v, nil
}

const slotColumns = `s.slot_id, s.staff_id, u.name, s.sequence_rank, s.active,
	s.current_load, s.capacity, s.total, s.headquarters, s.team, s.position, s.created_at`

func scanSlot(row rowScanner) (models.StaffSlot, error) {
	var slot models.StaffSlot
	if err := row.Scan(
		&slot.SlotID, &slot.StaffID, &slot.StaffName, &slot.SequenceRank, &slot.Active,
		&slot.CurrentLoad, &slot.Capacity, &slot.Total, &slot.Headquarters,
		&slot.Team, &slot.Position, &slot.CreatedAt,
	); err != nil {
		return models.StaffSlot{}, err
	}
	return slot, nil
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func nullFloatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	f := value.Float64
	return &f
}
