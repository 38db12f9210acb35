package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ohjeongjoo/informanager/internal/geo"
	"github.com/ohjeongjoo/informanager/internal/models"
	"github.com/ohjeongjoo/informanager/internal/store"
)

type Handler struct {
	store       store.Store
	sessionTTL  time.Duration
	kiosk       geo.Coordinates
	maxDistance float64
}

type Options struct {
	SessionTTL  time.Duration
	KioskLat    float64
	KioskLng    float64
	MaxDistance float64
}

func NewHandler(st store.Store, options Options) *Handler {
	ttl := options.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handler{
		store:       st,
		sessionTTL:  ttl,
		kiosk:       geo.Coordinates{Lat: options.KioskLat, Lng: options.KioskLng},
		maxDistance: options.MaxDistance,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/me", h.handleMe)
	mux.HandleFunc("/api/visitors", h.handleVisitors)
	mux.HandleFunc("/api/visitors/search", h.handleVisitorSearch)
	mux.HandleFunc("/api/visitors/reservation", h.handleReservation)
	mux.HandleFunc("/api/visitors/", h.handleVisitorActions)
	mux.HandleFunc("/api/work-orders", h.handleWorkOrders)
	mux.HandleFunc("/api/work-orders/bulk", h.handleWorkOrderBulk)
	mux.HandleFunc("/api/work-orders/next", h.handleWorkOrderNext)
	mux.HandleFunc("/api/work-orders/", h.handleWorkOrderItem)
	mux.HandleFunc("/api/staff", h.handleStaffCollection)
	mux.HandleFunc("/api/staff/checkin", h.handleCheckIn)
	mux.HandleFunc("/api/staff/checkout", h.handleCheckOut)
	mux.HandleFunc("/api/staff/attendance", h.handleAttendance)
	mux.HandleFunc("/api/staff/devices", h.handleDevices)
	mux.HandleFunc("/api/staff/", h.handleStaffItem)
	mux.HandleFunc("/api/proximity/check", h.handleProximityCheck)
	mux.HandleFunc("/api/events", h.handleEvents)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// --- auth ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionID string       `json:"session_id"`
	ExpiresAt time.Time    `json:"expires_at"`
	Staff     models.Staff `json:"staff"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	session, staff, err := h.store.Login(r.Context(), req.Username, req.Password, h.sessionTTL)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		SessionID: session.SessionID,
		ExpiresAt: session.ExpiresAt,
		Staff:     staff,
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	staff, ok := requireStaff(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, staff)
}

// --- visitors ---

type registerVisitorRequest struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	City           string `json:"city"`
	District       string `json:"district"`
	Gender         string `json:"gender"`
	AgeGroup       string `json:"age_group"`
	HasReservation *bool  `json:"has_reservation"`
}

func (h *Handler) handleVisitors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleRegisterVisitor(w, r)
	case http.MethodGet:
		h.handleListVisitors(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleRegisterVisitor(w http.ResponseWriter, r *http.Request) {
	var req registerVisitorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.City = strings.TrimSpace(req.City)
	req.District = strings.TrimSpace(req.District)
	req.Gender = strings.TrimSpace(req.Gender)
	req.AgeGroup = strings.TrimSpace(req.AgeGroup)

	if req.HasReservation == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "has_reservation is required")
		return
	}
	if req.Name == "" || req.Phone == "" || req.City == "" || req.District == "" || req.Gender == "" || req.AgeGroup == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name, phone, city, district, gender, and age_group are required")
		return
	}

	visitor, err := h.store.RegisterVisitor(r.Context(), store.RegisterVisitorInput{
		Name:           req.Name,
		Phone:          req.Phone,
		City:           req.City,
		District:       req.District,
		Gender:         req.Gender,
		AgeGroup:       req.AgeGroup,
		HasReservation: *req.HasReservation,
		VisitedAt:      time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, visitor)
}

func (h *Handler) handleListVisitors(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	input := store.ListVisitorsInput{
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
	}
	if dateRaw := strings.TrimSpace(r.URL.Query().Get("date")); dateRaw != "" {
		parsed, err := time.Parse("2006-01-02", dateRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
			return
		}
		input.Date = &parsed
	}
	if input.Status != "" && !isValidStatus(input.Status) {
		writeError(w, http.StatusBadRequest, "invalid_request", "status must be waiting, meeting, or completed")
		return
	}
	var ok bool
	if input.Page, ok = queryInt(w, r, "page"); !ok {
		return
	}
	if input.Limit, ok = queryInt(w, r, "limit"); !ok {
		return
	}

	visitors, total, err := h.store.ListVisitors(r.Context(), input)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"visitors": visitors,
		"total":    total,
	})
}

func (h *Handler) handleVisitorSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if name == "" || phone == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name and phone are required")
		return
	}

	visitor, found, err := h.store.FindVisitor(r.Context(), name, phone)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "visitor_not_found", "visitor not found")
		return
	}
	writeJSON(w, http.StatusOK, visitor)
}

type reservationRequest struct {
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	Total        string     `json:"total"`
	Headquarters string     `json:"headquarters"`
	Team         string     `json:"team"`
	StaffName    string     `json:"staff_name"`
	Position     string     `json:"position"`
	ExpectedAt   *time.Time `json:"expected_at"`
}

func (h *Handler) handleReservation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req reservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Total = strings.TrimSpace(req.Total)
	req.Headquarters = strings.TrimSpace(req.Headquarters)
	req.Team = strings.TrimSpace(req.Team)
	req.StaffName = strings.TrimSpace(req.StaffName)

	if req.Name == "" || req.Phone == "" || req.StaffName == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name, phone, and staff_name are required")
		return
	}

	visitor, err := h.store.RegisterReservation(r.Context(), store.RegisterReservationInput{
		Name:         req.Name,
		Phone:        req.Phone,
		Total:        req.Total,
		Headquarters: req.Headquarters,
		Team:         req.Team,
		StaffName:    req.StaffName,
		Position:     req.Position,
		ExpectedAt:   req.ExpectedAt,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, visitor)
}

func (h *Handler) handleVisitorActions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/visitors/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	visitorID := parts[0]
	if !isValidUUID(visitorID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "visitor_id must be a UUID")
		return
	}

	switch parts[1] {
	case "confirm":
		h.handleConfirmVisitor(w, r, visitorID)
	case "status":
		h.handleVisitorStatus(w, r, visitorID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type confirmRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleConfirmVisitor(w http.ResponseWriter, r *http.Request, visitorID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	staff, ok := requireStaff(w, r)
	if !ok {
		return
	}
	var req confirmRequest
	if !decodeJSONOptional(w, r, &req) {
		return
	}
	req.Status = strings.TrimSpace(req.Status)
	if req.Status != "" && req.Status != models.StatusMeeting && req.Status != models.StatusCompleted {
		writeError(w, http.StatusBadRequest, "invalid_request", "status must be meeting or completed")
		return
	}

	visitor, err := h.store.ConfirmVisitor(r.Context(), store.ConfirmVisitorInput{
		VisitorID:     visitorID,
		CallerStaffID: staff.StaffID,
		TargetStatus:  req.Status,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, visitor)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleVisitorStatus(w http.ResponseWriter, r *http.Request, visitorID string) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Status = strings.TrimSpace(req.Status)
	if !isValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid_request", "status must be waiting, meeting, or completed")
		return
	}

	visitor, err := h.store.UpdateVisitorStatus(r.Context(), visitorID, req.Status)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, visitor)
}

// --- work orders ---

type insertSlotRequest struct {
	StaffID string `json:"staff_id"`
	Rank    int    `json:"rank"`
}

func (h *Handler) handleWorkOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		includeInactive := r.URL.Query().Get("include_inactive") == "true"
		slots, err := h.store.ListSlots(r.Context(), includeInactive)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, slots)
	case http.MethodPost:
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		var req insertSlotRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.StaffID = strings.TrimSpace(req.StaffID)
		if req.StaffID == "" || !isValidUUID(req.StaffID) {
			writeError(w, http.StatusBadRequest, "invalid_request", "staff_id must be a UUID")
			return
		}
		if req.Rank < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "rank must be a positive integer")
			return
		}
		slot, err := h.store.InsertSlot(r.Context(), req.StaffID, req.Rank)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusCreated, slot)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type bulkSlotsRequest struct {
	StaffIDs []string `json:"staff_ids"`
}

func (h *Handler) handleWorkOrderBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req bulkSlotsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.StaffIDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "staff_ids is required")
		return
	}
	for _, staffID := range req.StaffIDs {
		if !isValidUUID(staffID) {
			writeError(w, http.StatusBadRequest, "invalid_request", "staff_ids must be UUIDs")
			return
		}
	}

	slots, err := h.store.ReplaceAll(r.Context(), req.StaffIDs)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *Handler) handleWorkOrderNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	slot, found, err := h.store.NextAvailable(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

type updateSlotRequest struct {
	Rank     *int  `json:"rank"`
	Active   *bool `json:"active"`
	Capacity *int  `json:"capacity"`
}

func (h *Handler) handleWorkOrderItem(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/work-orders/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	slotID := parts[0]
	if !isValidUUID(slotID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "slot_id must be a UUID")
		return
	}

	if len(parts) == 2 {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		switch parts[1] {
		case "assign":
			if err := h.store.AssignSlot(r.Context(), slotID); err != nil {
				status, code, msg := mapError(err)
				writeError(w, status, code, msg)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case "release":
			if err := h.store.ReleaseSlot(r.Context(), slotID); err != nil {
				status, code, msg := mapError(err)
				writeError(w, status, code, msg)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodPut:
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		var req updateSlotRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Rank == nil && req.Active == nil && req.Capacity == nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "at least one of rank, active, capacity is required")
			return
		}
		if req.Rank != nil && *req.Rank < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "rank must be a positive integer")
			return
		}
		if req.Capacity != nil && *req.Capacity < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "capacity must be a positive integer")
			return
		}
		slot, err := h.store.UpdateSlot(r.Context(), slotID, store.SlotPatch{
			Rank:     req.Rank,
			Active:   req.Active,
			Capacity: req.Capacity,
		})
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, slot)
	case http.MethodDelete:
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		if err := h.store.DeleteSlot(r.Context(), slotID); err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// --- staff ---

type createStaffRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Role         string `json:"role"`
	Total        string `json:"total"`
	Headquarters string `json:"headquarters"`
	Team         string `json:"team"`
	Position     string `json:"position"`
}

func (h *Handler) handleStaffCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListStaff(w, r)
	case http.MethodPost:
		h.handleCreateStaff(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleListStaff(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	input := store.ListStaffInput{
		Role:         strings.TrimSpace(r.URL.Query().Get("role")),
		Total:        strings.TrimSpace(r.URL.Query().Get("total")),
		Headquarters: strings.TrimSpace(r.URL.Query().Get("headquarters")),
		Team:         strings.TrimSpace(r.URL.Query().Get("team")),
	}
	var ok bool
	if input.Page, ok = queryInt(w, r, "page"); !ok {
		return
	}
	if input.Limit, ok = queryInt(w, r, "limit"); !ok {
		return
	}

	staff, total, err := h.store.ListStaff(r.Context(), input)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"staff": staff,
		"total": total,
	})
}

func (h *Handler) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req createStaffRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	req.Role = strings.TrimSpace(req.Role)
	if req.Username == "" || req.Password == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username, password, and name are required")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleStaff
	}
	if !isValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "invalid_request", "role must be admin, manager, or staff")
		return
	}

	staff, err := h.store.CreateStaff(r.Context(), store.CreateStaffInput{
		Username:     req.Username,
		Password:     req.Password,
		Name:         req.Name,
		Phone:        strings.TrimSpace(req.Phone),
		Role:         req.Role,
		Total:        strings.TrimSpace(req.Total),
		Headquarters: strings.TrimSpace(req.Headquarters),
		Team:         strings.TrimSpace(req.Team),
		Position:     strings.TrimSpace(req.Position),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, staff)
}

type updateStaffRequest struct {
	Name         *string `json:"name"`
	Phone        *string `json:"phone"`
	Role         *string `json:"role"`
	Total        *string `json:"total"`
	Headquarters *string `json:"headquarters"`
	Team         *string `json:"team"`
	Position     *string `json:"position"`
	Active       *bool   `json:"active"`
}

func (h *Handler) handleStaffItem(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/staff/")
	staffID := strings.Trim(path, "/")
	if strings.Contains(staffID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !isValidUUID(staffID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "staff_id must be a UUID")
		return
	}

	switch r.Method {
	case http.MethodPut:
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		var req updateStaffRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Role != nil && !isValidRole(*req.Role) {
			writeError(w, http.StatusBadRequest, "invalid_request", "role must be admin, manager, or staff")
			return
		}
		staff, err := h.store.UpdateStaff(r.Context(), staffID, store.StaffPatch{
			Name:         req.Name,
			Phone:        req.Phone,
			Role:         req.Role,
			Total:        req.Total,
			Headquarters: req.Headquarters,
			Team:         req.Team,
			Position:     req.Position,
			Active:       req.Active,
		})
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, staff)
	case http.MethodDelete:
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		if err := h.store.DeleteStaff(r.Context(), staffID); err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type checkInRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	staff, ok := requireStaff(w, r)
	if !ok {
		return
	}
	var req checkInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		writeError(w, http.StatusBadRequest, "invalid_request", "latitude and longitude must be supplied together")
		return
	}

	// Location-based gate: a check-in with coordinates must happen near
	// the office kiosk when a radius is configured.
	if req.Latitude != nil && h.maxDistance > 0 {
		result := geo.Check(geo.Coordinates{Lat: *req.Latitude, Lng: *req.Longitude}, h.kiosk, h.maxDistance)
		if !result.WithinRange {
			writeError(w, http.StatusForbidden, "out_of_range", result.Message)
			return
		}
	}

	updated, err := h.store.CheckIn(r.Context(), store.CheckInInput{
		StaffID: staff.StaffID,
		Lat:     req.Latitude,
		Lng:     req.Longitude,
		At:      time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	staff, ok := requireStaff(w, r)
	if !ok {
		return
	}
	updated, err := h.store.CheckOut(r.Context(), staff.StaffID, time.Now().UTC())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleAttendance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	input := store.AttendanceInput{
		Role:         strings.TrimSpace(r.URL.Query().Get("role")),
		Total:        strings.TrimSpace(r.URL.Query().Get("total")),
		Headquarters: strings.TrimSpace(r.URL.Query().Get("headquarters")),
		Team:         strings.TrimSpace(r.URL.Query().Get("team")),
	}
	if dateRaw := strings.TrimSpace(r.URL.Query().Get("date")); dateRaw != "" {
		parsed, err := time.Parse("2006-01-02", dateRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
			return
		}
		input.Date = &parsed
	}

	summary, err := h.store.Attendance(r.Context(), input)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type registerDeviceRequest struct {
	PushToken string `json:"push_token"`
	Platform  string `json:"platform"`
}

func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	staff, ok := requireStaff(w, r)
	if !ok {
		return
	}
	var req registerDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PushToken = strings.TrimSpace(req.PushToken)
	if req.PushToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "push_token is required")
		return
	}

	device, err := h.store.RegisterDevice(r.Context(), staff.StaffID, req.PushToken, strings.TrimSpace(req.Platform))
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// --- proximity ---

type proximityRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Kiosk     *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"kiosk"`
}

func (h *Handler) handleProximityCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req proximityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "latitude and longitude are required")
		return
	}

	kiosk := h.kiosk
	if req.Kiosk != nil {
		kiosk = geo.Coordinates{Lat: req.Kiosk.Latitude, Lng: req.Kiosk.Longitude}
	}
	result := geo.Check(geo.Coordinates{Lat: *req.Latitude, Lng: *req.Longitude}, kiosk, h.maxDistance)
	writeJSON(w, http.StatusOK, result)
}

// --- events ---

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	var after time.Time
	if afterRaw := strings.TrimSpace(r.URL.Query().Get("after")); afterRaw != "" {
		parsed, err := time.Parse(time.RFC3339, afterRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "after must be RFC3339 timestamp")
			return
		}
		after = parsed
	}
	afterID := strings.TrimSpace(r.URL.Query().Get("after_id"))
	if afterID != "" && !isValidUUID(afterID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "after_id must be a UUID")
		return
	}
	limit := 100
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.store.ListOutboxEvents(r.Context(), after, afterID, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// --- shared helpers ---

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

// decodeJSONOptional is decodeJSON for endpoints whose body may be
// omitted entirely. An empty body leaves the target zero-valued.
func decodeJSONOptional(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func queryInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		writeError(w, http.StatusBadRequest, "invalid_request", key+" must be a positive integer")
		return 0, false
	}
	return value, true
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func isValidStatus(value string) bool {
	switch value {
	case models.StatusWaiting, models.StatusMeeting, models.StatusCompleted:
		return true
	}
	return false
}

func isValidRole(value string) bool {
	switch value {
	case models.RoleAdmin, models.RoleManager, models.RoleStaff:
		return true
	}
	return false
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrVisitorNotFound):
		return http.StatusNotFound, "visitor_not_found", "visitor not found"
	case errors.Is(err, store.ErrStaffNotFound):
		return http.StatusNotFound, "staff_not_found", "staff not found"
	case errors.Is(err, store.ErrSlotNotFound):
		return http.StatusNotFound, "slot_not_found", "work order slot not found"
	case errors.Is(err, store.ErrDuplicateRank):
		return http.StatusConflict, "duplicate_rank", "sequence rank already in use"
	case errors.Is(err, store.ErrDuplicateStaff):
		return http.StatusConflict, "duplicate_staff", "staff already has an active slot"
	case errors.Is(err, store.ErrCapacityExceeded):
		return http.StatusConflict, "capacity_exceeded", "slot is at capacity"
	case errors.Is(err, store.ErrSlotInactive):
		return http.StatusConflict, "slot_inactive", "work order slot is inactive"
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden, "access_denied", "only the assigned staff member may confirm"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "visitor status does not allow this transition"
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusUnauthorized, "unauthorized", "invalid session"
	case errors.Is(err, store.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid username or password"
	case errors.Is(err, store.ErrUsernameTaken):
		return http.StatusConflict, "username_taken", "username already taken"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
