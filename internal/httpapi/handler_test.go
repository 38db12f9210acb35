package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ohjeongjoo/informanager/internal/models"
	"github.com/ohjeongjoo/informanager/internal/store"
)

type fakeStore struct {
	registerFn     func(ctx context.Context, input store.RegisterVisitorInput) (models.Visitor, error)
	reservationFn  func(ctx context.Context, input store.RegisterReservationInput) (models.Visitor, error)
	findVisitorFn  func(ctx context.Context, name, phone string) (models.Visitor, bool, error)
	confirmFn      func(ctx context.Context, input store.ConfirmVisitorInput) (models.Visitor, error)
	statusFn       func(ctx context.Context, visitorID, status string) (models.Visitor, error)
	listVisitorsFn func(ctx context.Context, input store.ListVisitorsInput) ([]models.Visitor, int, error)

	listSlotsFn  func(ctx context.Context, includeInactive bool) ([]models.StaffSlot, error)
	nextFn       func(ctx context.Context) (models.StaffSlot, bool, error)
	insertSlotFn func(ctx context.Context, staffID string, rank int) (models.StaffSlot, error)
	updateSlotFn func(ctx context.Context, slotID string, patch store.SlotPatch) (models.StaffSlot, error)
	deleteSlotFn func(ctx context.Context, slotID string) error
	replaceFn    func(ctx context.Context, staffIDs []string) ([]models.StaffSlot, error)
	assignFn     func(ctx context.Context, slotID string) error
	releaseFn    func(ctx context.Context, slotID string) error

	loginFn      func(ctx context.Context, username, password string, ttl time.Duration) (models.Session, models.Staff, error)
	getSessionFn func(ctx context.Context, sessionID string) (models.Session, models.Staff, error)
	checkInFn    func(ctx context.Context, input store.CheckInInput) (models.Staff, error)
}

func (f fakeStore) RegisterVisitor(ctx context.Context, input store.RegisterVisitorInput) (models.Visitor, error) {
	if f.registerFn == nil {
		return models.Visitor{}, nil
	}
	return f.registerFn(ctx, input)
}

func (f fakeStore) RegisterReservation(ctx context.Context, input store.RegisterReservationInput) (models.Visitor, error) {
	if f.reservationFn == nil {
		return models.Visitor{}, nil
	}
	return f.reservationFn(ctx, input)
}

func (f fakeStore) FindVisitor(ctx context.Context, name, phone string) (models.Visitor, bool, error) {
	if f.findVisitorFn == nil {
		return models.Visitor{}, false, nil
	}
	return f.findVisitorFn(ctx, name, phone)
}

func (f fakeStore) ConfirmVisitor(ctx context.Context, input store.ConfirmVisitorInput) (models.Visitor, error) {
	if f.confirmFn == nil {
		return models.Visitor{}, nil
	}
	return f.confirmFn(ctx, input)
}

func (f fakeStore) UpdateVisitorStatus(ctx context.Context, visitorID, status string) (models.Visitor, error) {
	if f.statusFn == nil {
		return models.Visitor{}, nil
	}
	return f.statusFn(ctx, visitorID, status)
}

func (f fakeStore) ListVisitors(ctx context.Context, input store.ListVisitorsInput) ([]models.Visitor, int, error) {
	if f.listVisitorsFn == nil {
		return nil, 0, nil
	}
	return f.listVisitorsFn(ctx, input)
}

func (f fakeStore) ListSlots(ctx context.Context, includeInactive bool) ([]models.StaffSlot, error) {
	if f.listSlotsFn == nil {
		return nil, nil
	}
	return f.listSlotsFn(ctx, includeInactive)
}

func (f fakeStore) NextAvailable(ctx context.Context) (models.StaffSlot, bool, error) {
	if f.nextFn == nil {
		return models.StaffSlot{}, false, nil
	}
	return f.nextFn(ctx)
}

func (f fakeStore) InsertSlot(ctx context.Context, staffID string, rank int) (models.StaffSlot, error) {
	if f.insertSlotFn == nil {
		return models.StaffSlot{}, nil
	}
	return f.insertSlotFn(ctx, staffID, rank)
}

func (f fakeStore) UpdateSlot(ctx context.Context, slotID string, patch store.SlotPatch) (models.StaffSlot, error) {
	if f.updateSlotFn == nil {
		return models.StaffSlot{}, nil
	}
	return f.updateSlotFn(ctx, slotID, patch)
}

func (f fakeStore) DeleteSlot(ctx context.Context, slotID string) error {
	if f.deleteSlotFn == nil {
		return nil
	}
	return f.deleteSlotFn(ctx, slotID)
}

func (f fakeStore) ReplaceAll(ctx context.Context, staffIDs []string) ([]models.StaffSlot, error) {
	if f.replaceFn == nil {
		return nil, nil
	}
	return f.replaceFn(ctx, staffIDs)
}

func (f fakeStore) AssignSlot(ctx context.Context, slotID string) error {
	if f.assignFn == nil {
		return nil
	}
	return f.assignFn(ctx, slotID)
}

func (f fakeStore) ReleaseSlot(ctx context.Context, slotID string) error {
	if f.releaseFn == nil {
		return nil
	}
	return f.releaseFn(ctx, slotID)
}

func (f fakeStore) Login(ctx context.Context, username, password string, ttl time.Duration) (models.Session, models.Staff, error) {
	if f.loginFn == nil {
		return models.Session{}, models.Staff{}, nil
	}
	return f.loginFn(ctx, username, password, ttl)
}

func (f fakeStore) GetSession(ctx context.Context, sessionID string) (models.Session, models.Staff, error) {
	if f.getSessionFn == nil {
		return models.Session{}, models.Staff{}, store.ErrSessionNotFound
	}
	return f.getSessionFn(ctx, sessionID)
}

func (f fakeStore) CreateStaff(ctx context.Context, input store.CreateStaffInput) (models.Staff, error) {
	return models.Staff{StaffID: "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa", Username: input.Username, Name: input.Name, Role: input.Role}, nil
}

func (f fakeStore) GetStaff(ctx context.Context, staffID string) (models.Staff, error) {
	return models.Staff{StaffID: staffID}, nil
}

func (f fakeStore) FindStaffByNameAndOrgUnit(ctx context.Context, name, total, headquarters, team string) (models.Staff, error) {
	return models.Staff{}, store.ErrStaffNotFound
}

func (f fakeStore) ListStaff(ctx context.Context, input store.ListStaffInput) ([]models.Staff, int, error) {
	return nil, 0, nil
}

func (f fakeStore) UpdateStaff(ctx context.Context, staffID string, patch store.StaffPatch) (models.Staff, error) {
	return models.Staff{StaffID: staffID}, nil
}

func (f fakeStore) DeleteStaff(ctx context.Context, staffID string) error {
	return nil
}

func (f fakeStore) CheckIn(ctx context.Context, input store.CheckInInput) (models.Staff, error) {
	if f.checkInFn == nil {
		return models.Staff{StaffID: input.StaffID, IsWorking: true}, nil
	}
	return f.checkInFn(ctx, input)
}

func (f fakeStore) CheckOut(ctx context.Context, staffID string, at time.Time) (models.Staff, error) {
	return models.Staff{StaffID: staffID}, nil
}

func (f fakeStore) Attendance(ctx context.Context, input store.AttendanceInput) (store.AttendanceSummary, error) {
	return store.AttendanceSummary{}, nil
}

func (f fakeStore) RegisterDevice(ctx context.Context, staffID, pushToken, platform string) (store.Device, error) {
	return store.Device{StaffID: staffID, PushToken: pushToken, Platform: platform}, nil
}

func (f fakeStore) ListDevices(ctx context.Context, staffIDs []string, roles []string) ([]store.Device, error) {
	return nil, nil
}

func (f fakeStore) ListOutboxEvents(ctx context.Context, after time.Time, afterID string, limit int) ([]store.OutboxEvent, error) {
	return nil, nil
}

func (f fakeStore) GetWorkerOffset(ctx context.Context, name string) (time.Time, string, error) {
	return time.Time{}, "", nil
}

func (f fakeStore) SetWorkerOffset(ctx context.Context, name string, eventTime time.Time, eventID string) error {
	return nil
}

func (f fakeStore) RecordNotification(ctx context.Context, n store.Notification) error {
	return nil
}

func (f fakeStore) PushDLQ(ctx context.Context, notificationID, reason string) error {
	return nil
}

func withAuth(req *http.Request, staff models.Staff) *http.Request {
	ctx := context.WithValue(req.Context(), authContextKey{}, authInfo{
		Session: models.Session{SessionID: "session-1", StaffID: staff.StaffID},
		Staff:   staff,
	})
	return req.WithContext(ctx)
}

func TestRegisterVisitorSuccess(t *testing.T) {
	staffID := "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
	st := fakeStore{
		registerFn: func(ctx context.Context, input store.RegisterVisitorInput) (models.Visitor, error) {
			return models.Visitor{
				VisitorID:       "cccccccc-cccc-cccc-cccc-cccccccccccc",
				Name:            input.Name,
				Phone:           input.Phone,
				VisitorKind:     models.KindWalkin,
				AssignedStaffID: &staffID,
				Status:          models.StatusWaiting,
			}, nil
		},
	}
	h := NewHandler(st, Options{})

	payload := map[string]any{
		"name":            "김하나",
		"phone":           "010-1234-5678",
		"city":            "서울",
		"district":        "강남구",
		"gender":          "female",
		"age_group":       "30s",
		"has_reservation": false,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/visitors", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}
	var visitor models.Visitor
	if err := json.NewDecoder(resp.Body).Decode(&visitor); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if visitor.Status != models.StatusWaiting || visitor.AssignedStaffID == nil {
		t.Fatalf("unexpected visitor response: %+v", visitor)
	}
}

func TestRegisterVisitorMissingFields(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{})

	payload := map[string]any{
		"name":            "김하나",
		"phone":           "010-1234-5678",
		"has_reservation": false,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/visitors", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestRegisterVisitorRequiresReservationFlag(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{})

	payload := map[string]any{
		"name":      "김하나",
		"phone":     "010-1234-5678",
		"city":      "서울",
		"district":  "강남구",
		"gender":    "female",
		"age_group": "30s",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/visitors", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestVisitorSearchNotFound(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/visitors/search?name=김하나&phone=01012345678", nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestConfirmVisitorForbidden(t *testing.T) {
	st := fakeStore{
		confirmFn: func(ctx context.Context, input store.ConfirmVisitorInput) (models.Visitor, error) {
			return models.Visitor{}, store.ErrForbidden
		},
	}
	h := NewHandler(st, Options{})

	body, _ := json.Marshal(map[string]string{})
	req := httptest.NewRequest(http.MethodPost, "/api/visitors/cccccccc-cccc-cccc-cccc-cccccccccccc/confirm", bytes.NewReader(body))
	req = withAuth(req, models.Staff{StaffID: "dddddddd-dddd-dddd-dddd-dddddddddddd", Role: models.RoleStaff})
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
}

func TestConfirmVisitorPassesCaller(t *testing.T) {
	var got store.ConfirmVisitorInput
	st := fakeStore{
		confirmFn: func(ctx context.Context, input store.ConfirmVisitorInput) (models.Visitor, error) {
			got = input
			return models.Visitor{VisitorID: input.VisitorID, Status: models.StatusMeeting, NotificationConfirmed: true}, nil
		},
	}
	h := NewHandler(st, Options{})

	body, _ := json.Marshal(map[string]string{"status": "meeting"})
	req := httptest.NewRequest(http.MethodPost, "/api/visitors/cccccccc-cccc-cccc-cccc-cccccccccccc/confirm", bytes.NewReader(body))
	req = withAuth(req, models.Staff{StaffID: "dddddddd-dddd-dddd-dddd-dddddddddddd", Role: models.RoleStaff})
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if got.CallerStaffID != "dddddddd-dddd-dddd-dddd-dddddddddddd" {
		t.Fatalf("caller not taken from session: %+v", got)
	}
	if got.TargetStatus != models.StatusMeeting {
		t.Fatalf("unexpected target status: %q", got.TargetStatus)
	}
}

func TestConfirmVisitorEmptyBody(t *testing.T) {
	var got store.ConfirmVisitorInput
	st := fakeStore{
		confirmFn: func(ctx context.Context, input store.ConfirmVisitorInput) (models.Visitor, error) {
			got = input
			return models.Visitor{VisitorID: input.VisitorID, Status: models.StatusMeeting, NotificationConfirmed: true}, nil
		},
	}
	h := NewHandler(st, Options{})

	// no body at all, not even {}
	req := httptest.NewRequest(http.MethodPost, "/api/visitors/cccccccc-cccc-cccc-cccc-cccccccccccc/confirm", nil)
	req = withAuth(req, models.Staff{StaffID: "dddddddd-dddd-dddd-dddd-dddddddddddd", Role: models.RoleStaff})
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if got.TargetStatus != "" {
		t.Fatalf("empty body must leave the target status unset, got %q", got.TargetStatus)
	}
}

func TestUpdateVisitorStatusRequiresAdmin(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{})

	body, _ := json.Marshal(map[string]string{"status": "completed"})
	req := httptest.NewRequest(http.MethodPut, "/api/visitors/cccccccc-cccc-cccc-cccc-cccccccccccc/status", bytes.NewReader(body))
	req = withAuth(req, models.Staff{StaffID: "dddddddd-dddd-dddd-dddd-dddddddddddd", Role: models.RoleStaff})
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
}

func TestInsertSlotDuplicateRank(t *testing.T) {
	st := fakeStore{
		insertSlotFn: func(ctx context.Context, staffID string, rank int) (models.StaffSlot, error) {
			return models.StaffSlot{}, store.ErrDuplicateRank
		},
	}
	h := NewHandler(st, Options{})

	body, _ := json.Marshal(map[string]any{
		"staff_id": "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb",
		"rank":     1,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/work-orders", bytes.NewReader(body))
	req = withAuth(req, models.Staff{StaffID: "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa", Role: models.RoleAdmin})
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
}

func TestNextAvailableEmpty(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/work-orders/next", nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}
}

func TestAssignSlotCapacityExceeded(t *testing.T) {
	st := fakeStore{
		assignFn: func(ctx context.Context, slotID string) error {
			return store.ErrCapacityExceeded
		},
	}
	h := NewHandler(st, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/work-orders/eeeeeeee-eeee-eeee-eeee-eeeeeeeeeeee/assign", bytes.NewReader([]byte("{}")))
	req = withAuth(req, models.Staff{StaffID: "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa", Role: models.RoleAdmin})
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
}

func TestBulkReplaceValidatesIDs(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{})

	body, _ := json.Marshal(map[string]any{"staff_ids": []string{"not-a-uuid"}})
	req := httptest.NewRequest(http.MethodPost, "/api/work-orders/bulk", bytes.NewReader(body))
	req = withAuth(req, models.Staff{StaffID: "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa", Role: models.RoleAdmin})
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestCheckInOutOfRange(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{
		KioskLat:    37.4979,
		KioskLng:    127.0276,
		MaxDistance: 100,
	})

	// roughly 1km north of the kiosk
	body, _ := json.Marshal(map[string]float64{
		"latitude":  37.5069,
		"longitude": 127.0276,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/staff/checkin", bytes.NewReader(body))
	req = withAuth(req, models.Staff{StaffID: "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa", Role: models.RoleStaff})
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
}

func TestCheckInWithoutCoordinates(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{
		KioskLat:    37.4979,
		KioskLng:    127.0276,
		MaxDistance: 100,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/staff/checkin", bytes.NewReader([]byte("{}")))
	req = withAuth(req, models.Staff{StaffID: "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa", Role: models.RoleStaff})
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
}

func TestProximityCheckDisabled(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{})

	body, _ := json.Marshal(map[string]float64{
		"latitude":  37.5069,
		"longitude": 127.0276,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/proximity/check", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var result struct {
		WithinRange bool `json:"is_within_range"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.WithinRange {
		t.Fatalf("expected disabled check to pass")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	st := fakeStore{
		loginFn: func(ctx context.Context, username, password string, ttl time.Duration) (models.Session, models.Staff, error) {
			return models.Session{}, models.Staff{}, store.ErrInvalidCredentials
		},
	}
	h := NewHandler(st, Options{})

	body, _ := json.Marshal(map[string]string{"username": "lee", "password": "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestAuthMiddlewareRejectsMissingSession(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{})
	wrapped := AuthMiddleware(fakeStore{}, h.Routes())

	req := httptest.NewRequest(http.MethodGet, "/api/visitors", nil)
	resp := httptest.NewRecorder()

	wrapped.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestAuthMiddlewareAllowsKioskRegistration(t *testing.T) {
	st := fakeStore{
		registerFn: func(ctx context.Context, input store.RegisterVisitorInput) (models.Visitor, error) {
			return models.Visitor{VisitorID: "cccccccc-cccc-cccc-cccc-cccccccccccc", Status: models.StatusWaiting}, nil
		},
	}
	h := NewHandler(st, Options{})
	wrapped := AuthMiddleware(st, h.Routes())

	payload := map[string]any{
		"name":            "김하나",
		"phone":           "010-1234-5678",
		"city":            "서울",
		"district":        "강남구",
		"gender":          "female",
		"age_group":       "30s",
		"has_reservation": false,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/visitors", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	wrapped.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}
}
