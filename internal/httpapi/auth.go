package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ohjeongjoo/informanager/internal/models"
	"github.com/ohjeongjoo/informanager/internal/store"
)

type authContextKey struct{}

type authInfo struct {
	Session models.Session
	Staff   models.Staff
}

func AuthMiddleware(st store.StaffStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		sessionID := sessionIDFromRequest(r)
		if sessionID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		session, staff, err := st.GetSession(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, authInfo{Session: session, Staff: staff})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authFromContext(ctx context.Context) (authInfo, bool) {
	value := ctx.Value(authContextKey{})
	if value == nil {
		return authInfo{}, false
	}
	info, ok := value.(authInfo)
	if !ok {
		return authInfo{}, false
	}
	return info, true
}

// requireStaff returns the authenticated staff member or writes the
// error response itself.
func requireStaff(w http.ResponseWriter, r *http.Request) (models.Staff, bool) {
	info, ok := authFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return models.Staff{}, false
	}
	return info.Staff, true
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (models.Staff, bool) {
	staff, ok := requireStaff(w, r)
	if !ok {
		return models.Staff{}, false
	}
	if staff.Role != models.RoleAdmin && staff.Role != models.RoleManager {
		writeError(w, http.StatusForbidden, "access_denied", "admin access required")
		return models.Staff{}, false
	}
	return staff, true
}

func sessionIDFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

// Kiosk endpoints are unauthenticated: visitors register and search from
// a shared tablet without accounts.
func isPublicEndpoint(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	case "/api/auth/login":
		return true
	case "/api/visitors":
		return r.Method == http.MethodPost
	case "/api/visitors/search":
		return true
	case "/api/work-orders/next":
		return true
	case "/api/proximity/check":
		return true
	default:
		return r.Method == http.MethodOptions
	}
}
