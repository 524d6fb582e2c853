package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "Invalid request"

var validate = validator.New()

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes the request body into dst and validates its struct tags.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

// mustGetPrincipal returns the authenticated principal or writes a 401.
func mustGetPrincipal(w http.ResponseWriter, r *http.Request) *attendance.Principal {
	p := middleware.GetPrincipalFromContext(r.Context())
	if p == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return nil
	}
	return p
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// respondServiceError maps domain errors to HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, attendance.ErrForbidden), errors.Is(err, attendance.ErrForbiddenClass):
		respondError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, attendance.ErrNoClassesAssigned):
		respondError(w, http.StatusForbidden, "No classes assigned")
	case errors.Is(err, attendance.ErrTeacherProfileMissing):
		respondError(w, http.StatusForbidden, "Teacher profile missing")
	case errors.Is(err, ledger.ErrClassNotFound):
		respondError(w, http.StatusNotFound, "Class not found")
	case errors.Is(err, ledger.ErrStudentNotFound):
		respondError(w, http.StatusNotFound, "Student not found")
	case errors.Is(err, ledger.ErrNotEnrolled):
		respondError(w, http.StatusBadRequest, "Student not in a class")
	case errors.Is(err, ledger.ErrNoAcademicYear):
		respondError(w, http.StatusBadRequest, "Class has no academic year")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
