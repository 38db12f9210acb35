package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ohjeongjoo/informanager/internal/models"
	"github.com/ohjeongjoo/informanager/internal/store"
)

const staffColumns = `staff_id, username, name, phone, role, total, headquarters, team, position,
	is_working, last_check_in, last_check_out, last_lat, last_lng, location_updated_at,
	active, created_at`

func scanStaff(row rowScanner) (models.Staff, error) {
	var st models.Staff
	var checkIn, checkOut, locUpdated sql.NullTime
	var lat, lng sql.NullFloat64
	if err := row.Scan(
		&st.StaffID, &st.Username, &st.Name, &st.Phone, &st.Role,
		&st.Total, &st.Headquarters, &st.Team, &st.Position,
		&st.IsWorking, &checkIn, &checkOut, &lat, &lng, &locUpdated,
		&st.Active, &st.CreatedAt,
	); err != nil {
		return models.Staff{}, err
	}
	st.LastCheckIn = nullTimePtr(checkIn)
	st.LastCheckOut = nullTimePtr(checkOut)
	st.LastLat = nullFloatPtr(lat)
	st.LastLng = nullFloatPtr(lng)
	st.LocationUpdatedAt = nullTimePtr(locUpdated)
	return st, nil
}

func (s *Store) Login(ctx context.Context, username, password string, ttl time.Duration) (models.Session, models.Staff, error) {
	var hash string
	row := s.pool.QueryRow(ctx, `
		SELECT password_hash, `+staffColumns+`
		FROM staff
		WHERE username = $1 AND active = TRUE
	`, username)
	var st models.Staff
	var checkIn, checkOut, locUpdated sql.NullTime
	var lat, lng sql.NullFloat64
	if err := row.Scan(
		&hash,
		&st.StaffID, &st.Username, &st.Name, &st.Phone, &st.Role,
		&st.Total, &st.Headquarters, &st.Team, &st.Position,
		&st.IsWorking, &checkIn, &checkOut, &lat, &lng, &locUpdated,
		&st.Active, &st.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, models.Staff{}, store.ErrInvalidCredentials
		}
		return models.Session{}, models.Staff{}, err
	}
	st.LastCheckIn = nullTimePtr(checkIn)
	st.LastCheckOut = nullTimePtr(checkOut)
	st.LastLat = nullFloatPtr(lat)
	st.LastLng = nullFloatPtr(lng)
	st.LocationUpdatedAt = nullTimePtr(locUpdated)

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return models.Session{}, models.Staff{}, store.ErrInvalidCredentials
	}

	session := models.Session{
		SessionID: uuid.NewString(),
		StaffID:   st.StaffID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, staff_id, expires_at)
		VALUES ($1, $2, $3)
	`, session.SessionID, session.StaffID, session.ExpiresAt); err != nil {
		return models.Session{}, models.Staff{}, err
	}
	return session, st, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (models.Session, models.Staff, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT se.session_id, se.staff_id, se.expires_at
		FROM sessions se
		WHERE se.session_id = $1 AND se.expires_at > NOW()
	`, sessionID)
	var session models.Session
	if err := row.Scan(&session.SessionID, &session.StaffID, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, models.Staff{}, store.ErrSessionNotFound
		}
		return models.Session{}, models.Staff{}, err
	}
	staff, err := s.GetStaff(ctx, session.StaffID)
	if err != nil {
		if errors.Is(err, store.ErrStaffNotFound) {
			return models.Session{}, models.Staff{}, store.ErrSessionNotFound
		}
		return models.Session{}, models.Staff{}, err
	}
	return session, staff, nil
}

func (s *Store) CreateStaff(ctx context.Context, input store.CreateStaffInput) (models.Staff, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.Staff{}, err
	}

	staff := models.Staff{
		StaffID:      uuid.NewString(),
		Username:     input.Username,
		Name:         input.Name,
		Phone:        input.Phone,
		Role:         input.Role,
		Total:        input.Total,
		Headquarters: input.Headquarters,
		Team:         input.Team,
		Position:     input.Position,
		Active:       true,
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO staff (staff_id, username, password_hash, name, phone, role, total, headquarters, team, position)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (username) DO NOTHING
		RETURNING created_at
	`, staff.StaffID, staff.Username, string(hash), staff.Name, staff.Phone,
		staff.Role, staff.Total, staff.Headquarters, staff.Team, staff.Position)
	if err := row.Scan(&staff.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Staff{}, store.ErrUsernameTaken
		}
		return models.Staff{}, err
	}
	return staff, nil
}

func (s *Store) GetStaff(ctx context.Context, staffID string) (models.Staff, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+staffColumns+`
		FROM staff
		WHERE staff_id = $1
	`, staffID)
	staff, err := scanStaff(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Staff{}, store.ErrStaffNotFound
		}
		return models.Staff{}, err
	}
	return staff, nil
}

// FindStaffByNameAndOrgUnit resolves a reservation's free-form staff
// reference. All four fields must match an active staff member exactly.
func (s *Store) FindStaffByNameAndOrgUnit(ctx context.Context, name, total, headquarters, team string) (models.Staff, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+staffColumns+`
		FROM staff
		WHERE name = $1 AND total = $2 AND headquarters = $3 AND team = $4 AND active = TRUE
		ORDER BY created_at ASC
		LIMIT 1
	`, name, total, headquarters, team)
	staff, err := scanStaff(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Staff{}, store.ErrStaffNotFound
		}
		return models.Staff{}, err
	}
	return staff, nil
}

func (s *Store) ListStaff(ctx context.Context, input store.ListStaffInput) ([]models.Staff, int, error) {
	conds := []string{`active = TRUE`}
	args := []any{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, column+` = $`+strconv.Itoa(len(args)))
	}
	add("role", input.Role)
	add("total", input.Total)
	add("headquarters", input.Headquarters)
	add("team", input.Team)
	where := ` WHERE ` + strings.Join(conds, " AND ")

	var total int
	row := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM staff`+where, args...)
	if err := row.Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	page := input.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit)
	query := `SELECT ` + staffColumns + ` FROM staff` + where +
		` ORDER BY name ASC LIMIT $` + strconv.Itoa(len(args))
	args = append(args, (page-1)*limit)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []models.Staff
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, staff)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (s *Store) UpdateStaff(ctx context.Context, staffID string, patch store.StaffPatch) (models.Staff, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Staff{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT `+staffColumns+`
		FROM staff
		WHERE staff_id = $1
		FOR UPDATE
	`, staffID)
	staff, err := scanStaff(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrStaffNotFound
		}
		return models.Staff{}, err
	}

	if patch.Name != nil {
		staff.Name = *patch.Name
	}
	if patch.Phone != nil {
		staff.Phone = *patch.Phone
	}
	if patch.Role != nil {
		staff.Role = *patch.Role
	}
	if patch.Total != nil {
		staff.Total = *patch.Total
	}
	if patch.Headquarters != nil {
		staff.Headquarters = *patch.Headquarters
	}
	if patch.Team != nil {
		staff.Team = *patch.Team
	}
	if patch.Position != nil {
		staff.Position = *patch.Position
	}
	if patch.Active != nil {
		staff.Active = *patch.Active
	}

	if _, err = tx.Exec(ctx, `
		UPDATE staff
		SET name = $1, phone = $2, role = $3, total = $4,
			headquarters = $5, team = $6, position = $7, active = $8
		WHERE staff_id = $9
	`, staff.Name, staff.Phone, staff.Role, staff.Total,
		staff.Headquarters, staff.Team, staff.Position, staff.Active, staffID); err != nil {
		return models.Staff{}, err
	}

	// Deactivating a staff member pulls their slot out of the rotation
	// so new visitors stop landing on them.
	if patch.Active != nil && !*patch.Active {
		if _, err = tx.Exec(ctx, `
			UPDATE staff_slots SET active = FALSE, updated_at = NOW()
			WHERE staff_id = $1 AND active = TRUE
		`, staffID); err != nil {
			return models.Staff{}, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Staff{}, err
	}
	return staff, nil
}

func (s *Store) DeleteStaff(ctx context.Context, staffID string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM staff_slots WHERE staff_id = $1`, staffID); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE staff SET active = FALSE WHERE staff_id = $1 AND active = TRUE
	`, staffID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = store.ErrStaffNotFound
		return err
	}
	return tx.Commit(ctx)
}

// Attendance lists active staff under the given org filters and counts
// who is working. With a date filter, "working" means checked in on that
// day; without one it is the live is_working flag.
func (s *Store) Attendance(ctx context.Context, input store.AttendanceInput) (store.AttendanceSummary, error) {
	conds := []string{`active = TRUE`}
	args := []any{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, column+` = $`+strconv.Itoa(len(args)))
	}
	add("role", input.Role)
	add("total", input.Total)
	add("headquarters", input.Headquarters)
	add("team", input.Team)

	query := `SELECT ` + staffColumns + ` FROM staff WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY name ASC`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return store.AttendanceSummary{}, err
	}
	defer rows.Close()

	var summary store.AttendanceSummary
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return store.AttendanceSummary{}, err
		}
		if isWorkingOn(staff, input.Date) {
			summary.Working++
		} else {
			summary.NotWorking++
		}
		summary.Staff = append(summary.Staff, staff)
	}
	if err := rows.Err(); err != nil {
		return store.AttendanceSummary{}, err
	}
	return summary, nil
}

func isWorkingOn(staff models.Staff, date *time.Time) bool {
	if date == nil {
		return staff.IsWorking
	}
	if staff.LastCheckIn == nil {
		return false
	}
	y1, m1, d1 := staff.LastCheckIn.Date()
	y2, m2, d2 := date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (s *Store) CheckIn(ctx context.Context, input store.CheckInInput) (models.Staff, error) {
	at := input.At
	if at.IsZero() {
		at = time.Now()
	}
	var lat, lng any
	var locUpdated any
	if input.Lat != nil && input.Lng != nil {
		lat, lng = *input.Lat, *input.Lng
		locUpdated = at
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE staff
		SET is_working = TRUE,
			last_check_in = $1,
			last_lat = COALESCE($2, last_lat),
			last_lng = COALESCE($3, last_lng),
			location_updated_at = COALESCE($4, location_updated_at)
		WHERE staff_id = $5 AND active = TRUE
		RETURNING `+staffColumns+`
	`, at, lat, lng, locUpdated, input.StaffID)
	staff, err := scanStaff(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Staff{}, store.ErrStaffNotFound
		}
		return models.Staff{}, err
	}
	return staff, nil
}

func (s *Store) CheckOut(ctx context.Context, staffID string, at time.Time) (models.Staff, error) {
	if at.IsZero() {
		at = time.Now()
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE staff
		SET is_working = FALSE,
			last_check_out = $1
		WHERE staff_id = $2 AND active = TRUE
		RETURNING `+staffColumns+`
	`, at, staffID)
	staff, err := scanStaff(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Staff{}, store.ErrStaffNotFound
		}
		return models.Staff{}, err
	}
	return staff, nil
}

func (s *Store) RegisterDevice(ctx context.Context, staffID, pushToken, platform string) (store.Device, error) {
	device := store.Device{
		DeviceID:  uuid.NewString(),
		StaffID:   staffID,
		PushToken: pushToken,
		Platform:  platform,
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO staff_devices (device_id, staff_id, push_token, platform)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (staff_id, push_token) DO UPDATE SET platform = EXCLUDED.platform
		RETURNING device_id, created_at
	`, device.DeviceID, staffID, pushToken, platform)
	if err := row.Scan(&device.DeviceID, &device.CreatedAt); err != nil {
		return store.Device{}, err
	}
	return device, nil
}

// ListDevices returns push targets for the given staff plus everyone in
// the given roles. Either filter may be empty; both empty means no rows.
func (s *Store) ListDevices(ctx context.Context, staffIDs []string, roles []string) ([]store.Device, error) {
	if len(staffIDs) == 0 && len(roles) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT d.device_id, d.staff_id, d.push_token, d.platform, d.created_at
		FROM staff_devices d
		JOIN staff u ON u.staff_id = d.staff_id
		WHERE u.active = TRUE
			AND (d.staff_id = ANY($1) OR u.role = ANY($2))
		ORDER BY d.created_at ASC
	`, staffIDs, roles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []store.Device
	for rows.Next() {
		var d store.Device
		if err := rows.Scan(&d.DeviceID, &d.StaffID, &d.PushToken, &d.Platform, &d.CreatedAt); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return devices, nil
}
