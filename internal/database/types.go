package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Embedding is a fixed-length face descriptor. Its length is decided by the
// extraction backend (128 for dlib, 512 for the embedding server).
type Embedding []float64

// Status is the attendance state of one student on one day.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// Role is the role of an authenticated user.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// AcademicYear represents a school year such as "2024-2025"
type AcademicYear struct {
	ID       int64
	Year     string
	IsActive bool
}

// SchoolClass is one grade/section pair. AcademicYearID is nil for classes
// created before any academic year existed.
type SchoolClass struct {
	ID             int64
	Grade          int
	Section        string
	AcademicYearID *int64
	AcademicYear   string // year label, empty when AcademicYearID is nil
}

// Label returns the human-readable class name, e.g. "Class 5-B".
func (c *SchoolClass) Label() string {
	return fmt.Sprintf("Class %d-%s", c.Grade, strings.ToUpper(c.Section))
}

// Student is a roster entry. ID is the owning user's id.
type Student struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	RollNumber   string
	ClassID      *int64
	PhotoPath    string    // relative to the media root, empty when no photo
	FaceEncoding Embedding // primary embedding, nil when none was computed
}

// FullName returns "First Last", falling back to the username.
func (s *Student) FullName() string {
	name := strings.TrimSpace(s.FirstName + " " + s.LastName)
	if name == "" {
		return s.Username
	}
	return name
}

// InClass reports whether the student is currently enrolled in classID.
func (s *Student) InClass(classID int64) bool {
	return s.ClassID != nil && *s.ClassID == classID
}

// FaceSample is an additional reference photo of a student
type FaceSample struct {
	ID        int64
	StudentID int64
	ImagePath string
	CreatedAt time.Time
}

// Teacher is a teacher profile with the classes it is assigned to
type Teacher struct {
	ID       int64
	UserID   int64
	ClassIDs []int64
}

// Teaches reports whether the teacher is assigned to classID.
func (t *Teacher) Teaches(classID int64) bool {
	for _, id := range t.ClassIDs {
		if id == classID {
			return true
		}
	}
	return false
}

// RecordKey identifies the single attendance record allowed per student,
// class, calendar date and academic year.
type RecordKey struct {
	StudentID      int64
	ClassID        int64
	Date           time.Time // calendar date, see DateOf
	AcademicYearID int64
}

// String returns a stable textual form used for locking and map keys.
func (k RecordKey) String() string {
	return fmt.Sprintf("%d:%d:%s:%d", k.StudentID, k.ClassID, FormatDate(k.Date), k.AcademicYearID)
}

// AttendanceRecord is the stored attendance state for one RecordKey
type AttendanceRecord struct {
	ID             int64
	StudentID      int64
	ClassID        int64
	AcademicYearID int64
	Date           time.Time
	Status         Status
	Confidence     float64
	CreatedAt      time.Time
}

// Key returns the record's uniqueness key.
func (r *AttendanceRecord) Key() RecordKey {
	return RecordKey{StudentID: r.StudentID, ClassID: r.ClassID, Date: r.Date, AcademicYearID: r.AcademicYearID}
}

// ExcuseLogEntry is one append-only audit row written for every
// state-changing manual excuse performed by a teacher.
type ExcuseLogEntry struct {
	ID        uuid.UUID
	TeacherID int64
	StudentID int64
	ClassID   int64
	Date      time.Time
	CreatedAt time.Time
}

// HistoryRecord is an attendance record joined with its class for history views
type HistoryRecord struct {
	Date         time.Time
	Status       Status
	Confidence   float64
	ClassID      int64
	Grade        int
	Section      string
	AcademicYear string
}

// DateOf truncates t to its calendar date in t's own location and returns
// it as midnight UTC, so dates compare and format identically everywhere.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// ParseDate parses YYYY-MM-DD into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}
