package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// SnapshotRow is one roster line of a class attendance snapshot
type SnapshotRow struct {
	StudentID  int64           `json:"id"`
	Name       string          `json:"name"`
	RollNumber string          `json:"roll_number"`
	Status     database.Status `json:"status"`
	Confidence *float64        `json:"confidence"`
	PhotoURL   *string         `json:"photo_url"`
}

// Snapshot is the attendance of a whole class on one date
type Snapshot struct {
	Class *database.SchoolClass
	Date  time.Time
	Rows  []SnapshotRow
}

// StatusBreakdown counts snapshot rows per status
type StatusBreakdown struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
	Excused int `json:"excused"`
	Total   int `json:"total"`
}

// HistoryEntry is one line of a student's attendance history
type HistoryEntry struct {
	Date         string          `json:"date"`
	Status       database.Status `json:"status"`
	Confidence   float64         `json:"confidence"`
	ClassID      int64           `json:"class_id"`
	Class        string          `json:"class"`
	AcademicYear string          `json:"academic_year"`
}

// Snapshot lists every enrolled student in roster order with the status
// recorded for date. Students without a record are absent. A class without
// academic year has no records, so everyone is absent.
func (l *Ledger) Snapshot(ctx context.Context, classID int64, date time.Time) (*Snapshot, error) {
	class, yearID, err := l.resolveClass(ctx, classID)
	if err != nil && !errors.Is(err, ErrNoAcademicYear) {
		return nil, err
	}
	date = database.DateOf(date)

	students, err := l.roster.ListStudents(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list students of class %d: %w", classID, err)
	}

	byStudent := make(map[int64]database.AttendanceRecord)
	if class.AcademicYearID != nil {
		records, err := l.store.RecordsForClass(ctx, classID, date, yearID)
		if err != nil {
			return nil, fmt.Errorf("records for class %d: %w", classID, err)
		}
		for _, r := range records {
			byStudent[r.StudentID] = r
		}
	}

	rows := make([]SnapshotRow, 0, len(students))
	for i := range students {
		s := &students[i]
		row := SnapshotRow{
			StudentID:  s.ID,
			Name:       s.FullName(),
			RollNumber: s.RollNumber,
			Status:     database.StatusAbsent,
		}
		if rec, ok := byStudent[s.ID]; ok {
			conf := rec.Confidence
			row.Status = rec.Status
			row.Confidence = &conf
		}
		if s.PhotoPath != "" {
			url := l.photoURL(s.PhotoPath)
			row.PhotoURL = &url
		}
		rows = append(rows, row)
	}

	return &Snapshot{Class: class, Date: date, Rows: rows}, nil
}

// Breakdown counts rows per status
func Breakdown(rows []SnapshotRow) StatusBreakdown {
	var b StatusBreakdown
	for _, r := range rows {
		switch r.Status {
		case database.StatusPresent:
			b.Present++
		case database.StatusAbsent:
			b.Absent++
		case database.StatusLate:
			b.Late++
		case database.StatusExcused:
			b.Excused++
		}
	}
	b.Total = len(rows)
	return b
}

// StudentHistory returns a student's records newest first. allowedClassIDs
// restricts the classes visible to the caller; nil means all classes.
func (l *Ledger) StudentHistory(ctx context.Context, studentID int64, allowedClassIDs []int64) ([]HistoryEntry, error) {
	records, err := l.store.StudentHistory(ctx, studentID, allowedClassIDs)
	if err != nil {
		return nil, fmt.Errorf("history of student %d: %w", studentID, err)
	}

	entries := make([]HistoryEntry, 0, len(records))
	for _, r := range records {
		class := database.SchoolClass{Grade: r.Grade, Section: r.Section}
		entries = append(entries, HistoryEntry{
			Date:         database.FormatDate(r.Date),
			Status:       r.Status,
			Confidence:   r.Confidence,
			ClassID:      r.ClassID,
			Class:        class.Label(),
			AcademicYear: r.AcademicYear,
		})
	}
	return entries, nil
}
