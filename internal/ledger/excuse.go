package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// ExcuseResult is the outcome of SetExcused
type ExcuseResult struct {
	Status         database.Status
	PreviousStatus *database.Status // nil when no record existed
	QuotaRemaining *int             // nil when no teacher acted (admin)
	Changed        bool
}

// SetExcused marks a student excused for date. When teacherID is set the
// action counts against that teacher's daily quota and is written to the
// audit log; re-excusing an excused student is a free no-op.
func (l *Ledger) SetExcused(ctx context.Context, studentID, classID int64, teacherID *int64, date time.Time) (*ExcuseResult, error) {
	_, yearID, err := l.resolveClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	student, err := l.roster.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student %d: %w", studentID, err)
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}
	if !student.InClass(classID) {
		return nil, ErrNotEnrolled
	}

	date = database.DateOf(date)
	now := l.now()
	key := database.RecordKey{StudentID: studentID, ClassID: classID, Date: date, AcademicYearID: yearID}

	var result *ExcuseResult
	err = l.store.WithinTx(ctx, func(tx database.LedgerTx) error {
		result = nil
		used := 0
		if teacherID != nil {
			if err := tx.LockTeacherDay(ctx, *teacherID, date); err != nil {
				return err
			}
			n, err := tx.CountExcuses(ctx, *teacherID, date)
			if err != nil {
				return err
			}
			used = n
		}

		if err := tx.LockKey(ctx, key); err != nil {
			return err
		}
		rec, err := tx.GetRecord(ctx, key)
		if err != nil {
			return err
		}

		res := &ExcuseResult{Status: database.StatusExcused}
		var existing *database.Status
		if rec != nil {
			prev := rec.Status
			existing = &prev
			res.PreviousStatus = &prev
		}

		if !canExcuse(existing) {
			res.QuotaRemaining = l.remaining(teacherID, used)
			result = res
			return nil
		}
		if teacherID != nil && used >= l.dailyLimit {
			return ErrLimitReached
		}

		if err := tx.PutRecord(ctx, key, database.StatusExcused, 1.0, now); err != nil {
			return err
		}
		if teacherID != nil {
			entry := database.ExcuseLogEntry{
				ID:        uuid.New(),
				TeacherID: *teacherID,
				StudentID: studentID,
				ClassID:   classID,
				Date:      date,
				CreatedAt: now,
			}
			if err := tx.AppendExcuse(ctx, entry); err != nil {
				return err
			}
			used++
		}

		res.Changed = true
		res.QuotaRemaining = l.remaining(teacherID, used)
		result = res
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrLimitReached) {
			return nil, ErrLimitReached
		}
		return nil, fmt.Errorf("excuse student %d: %w", studentID, err)
	}

	if result.Changed {
		l.logger.Info("student excused",
			"student_id", studentID, "class_id", classID, "date", database.FormatDate(date), "by_teacher", teacherID != nil)
	}
	return result, nil
}

func (l *Ledger) remaining(teacherID *int64, used int) *int {
	if teacherID == nil {
		return nil
	}
	r := max(0, l.dailyLimit-used)
	return &r
}
