package handlers

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// AttendanceHandler handles recognition and attendance endpoints
type AttendanceHandler struct {
	service *attendance.Service
	logger  *slog.Logger
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(svc *attendance.Service, logger *slog.Logger) *AttendanceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttendanceHandler{
		service: svc,
		logger:  logger,
	}
}

// RecognizeRequest is the body of POST /recognize
type RecognizeRequest struct {
	Image   string `json:"image" validate:"required"`
	ClassID int64  `json:"class_id" validate:"required,gt=0"`
}

// decodeDataURL returns the bytes of a base64 data URL. A bare base64
// payload without the "data:...;base64," prefix is accepted too.
func decodeDataURL(s string) ([]byte, error) {
	if _, payload, ok := strings.Cut(s, ","); ok {
		s = payload
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return data, nil
}

// Recognize matches the faces in a frame against a class and marks the
// matched students present.
func (h *AttendanceHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	p := mustGetPrincipal(w, r)
	if p == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxFrameUploadSize)
	var req RecognizeRequest
	if err := decodeJSON(r, &req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
		if verrs[0].Field() == "ClassID" {
			respondError(w, http.StatusBadRequest, "class_id is required")
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid image data")
		return
	}

	frame, err := decodeDataURL(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid image data")
		return
	}

	if _, err := h.service.Authorize(r.Context(), *p, req.ClassID); err != nil {
		respondServiceError(w, err)
		return
	}

	result, err := h.service.Recognize(r.Context(), frame, req.ClassID)
	if err != nil {
		if errors.Is(err, recognition.ErrInvalidImage) {
			respondError(w, http.StatusBadRequest, "Invalid image data")
			return
		}
		h.logger.Error("recognize failed", "class_id", req.ClassID, "error", err)
		respondError(w, http.StatusInternalServerError, "recognition failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ExcuseResponse is the result of POST /students/{id}/excuse
type ExcuseResponse struct {
	OK             bool             `json:"ok"`
	Status         *database.Status `json:"status"`
	PreviousStatus *database.Status `json:"previous_status"`
	LimitRemaining *int             `json:"limit_remaining"`
	Error          *string          `json:"error"`
}

// excuseReason maps an excuse failure to its reason code and HTTP status.
// ok is false for errors that have no reason code.
func excuseReason(err error) (reason string, status int, ok bool) {
	switch {
	case errors.Is(err, ledger.ErrLimitReached):
		return constants.ReasonLimitReached, http.StatusBadRequest, true
	case errors.Is(err, attendance.ErrForbiddenClass):
		return constants.ReasonForbiddenClass, http.StatusForbidden, true
	case errors.Is(err, ledger.ErrNoAcademicYear):
		return constants.ReasonNoAcademicYear, http.StatusBadRequest, true
	case errors.Is(err, ledger.ErrNotEnrolled):
		return constants.ReasonNotInClass, http.StatusBadRequest, true
	case errors.Is(err, attendance.ErrTeacherProfileMissing):
		return constants.ReasonTeacherProfileMissing, http.StatusForbidden, true
	}
	return "", 0, false
}

// Excuse marks a student excused for today in their current class
func (h *AttendanceHandler) Excuse(w http.ResponseWriter, r *http.Request) {
	p := mustGetPrincipal(w, r)
	if p == nil {
		return
	}
	studentID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid student id")
		return
	}

	res, err := h.service.Excuse(r.Context(), *p, studentID)
	if err != nil {
		if reason, status, ok := excuseReason(err); ok {
			respondJSON(w, status, ExcuseResponse{OK: false, Error: &reason})
			return
		}
		if errors.Is(err, attendance.ErrForbidden) || errors.Is(err, ledger.ErrStudentNotFound) {
			respondServiceError(w, err)
			return
		}
		h.logger.Error("excuse failed", "student_id", studentID, "error", err)
		respondError(w, http.StatusInternalServerError, "excuse failed")
		return
	}

	status := res.Status
	respondJSON(w, http.StatusOK, ExcuseResponse{
		OK:             true,
		Status:         &status,
		PreviousStatus: res.PreviousStatus,
		LimitRemaining: res.QuotaRemaining,
	})
}

// ClassInfo identifies a class in API responses
type ClassInfo struct {
	ID           int64  `json:"id"`
	Label        string `json:"label"`
	AcademicYear string `json:"academic_year"`
}

// SummaryResponse is the result of GET /attendance/summary
type SummaryResponse struct {
	Date     string                 `json:"date"`
	Class    ClassInfo              `json:"class"`
	Students []ledger.SnapshotRow   `json:"students"`
	Summary  ledger.StatusBreakdown `json:"summary"`
}

// Summary returns the attendance of a class on a date
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	p := mustGetPrincipal(w, r)
	if p == nil {
		return
	}

	q := r.URL.Query()
	rawClass, rawDate := q.Get("class_id"), q.Get("date")
	if rawClass == "" || rawDate == "" {
		respondError(w, http.StatusBadRequest, "class_id and date are required")
		return
	}
	classID, err := strconv.ParseInt(rawClass, 10, 64)
	if err != nil || classID <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid class_id")
		return
	}
	date, err := database.ParseDate(rawDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date")
		return
	}

	sum, err := h.service.Summary(r.Context(), *p, classID, date)
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("summary failed", "class_id", classID, "date", sanitizeForLog(rawDate), "error", err)
		}
		respondServiceError(w, err)
		return
	}

	snap := sum.Snapshot
	rows := snap.Rows
	if rows == nil {
		rows = []ledger.SnapshotRow{}
	}
	respondJSON(w, http.StatusOK, SummaryResponse{
		Date: database.FormatDate(snap.Date),
		Class: ClassInfo{
			ID:           snap.Class.ID,
			Label:        snap.Class.Label(),
			AcademicYear: snap.Class.AcademicYear,
		},
		Students: rows,
		Summary:  sum.Breakdown,
	})
}

// StudentInfo identifies a student in API responses
type StudentInfo struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	RollNumber string `json:"roll_number"`
}

// HistoryResponse is the result of GET /students/{id}/history
type HistoryResponse struct {
	Student StudentInfo           `json:"student"`
	Records []ledger.HistoryEntry `json:"records"`
}

// History returns a student's attendance records, newest first
func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	p := mustGetPrincipal(w, r)
	if p == nil {
		return
	}
	studentID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid student id")
		return
	}

	student, entries, err := h.service.History(r.Context(), *p, studentID)
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("history failed", "student_id", studentID, "error", err)
		}
		respondServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []ledger.HistoryEntry{}
	}

	respondJSON(w, http.StatusOK, HistoryResponse{
		Student: StudentInfo{ID: student.ID, Name: student.FullName(), RollNumber: student.RollNumber},
		Records: entries,
	})
}

// Diagnostics reports photo and encoding coverage of a class
func (h *AttendanceHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	p := mustGetPrincipal(w, r)
	if p == nil {
		return
	}
	if !p.IsStaff() {
		respondError(w, http.StatusForbidden, "Forbidden")
		return
	}

	rawClass := r.URL.Query().Get("class_id")
	if rawClass == "" {
		respondError(w, http.StatusBadRequest, "class_id is required")
		return
	}
	classID, err := strconv.ParseInt(rawClass, 10, 64)
	if err != nil || classID <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid class_id")
		return
	}
	if _, err := h.service.Authorize(r.Context(), *p, classID); err != nil {
		respondServiceError(w, err)
		return
	}

	d, err := h.service.Diagnose(r.Context(), classID)
	if err != nil {
		h.logger.Error("diagnostics failed", "class_id", classID, "error", err)
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// isClientError reports whether err is a domain error caused by the request
func isClientError(err error) bool {
	for _, target := range []error{
		attendance.ErrForbidden, attendance.ErrForbiddenClass, attendance.ErrNoClassesAssigned,
		attendance.ErrTeacherProfileMissing, ledger.ErrClassNotFound, ledger.ErrStudentNotFound,
		ledger.ErrNotEnrolled, ledger.ErrNoAcademicYear,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
