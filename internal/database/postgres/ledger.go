package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// PostgreSQL error codes that make a ledger transaction worth retrying
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// LedgerRepository stores attendance records and the manual excuse log.
type LedgerRepository struct {
	pool *Pool
}

// NewLedgerRepository creates a new PostgreSQL ledger repository.
func NewLedgerRepository(pool *Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// isRetryable reports whether err is a conflict another attempt can resolve
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// WithinTx runs fn in one transaction, retrying it from scratch when the
// transaction hit a uniqueness or serialization conflict.
func (r *LedgerRepository) WithinTx(ctx context.Context, fn func(tx database.LedgerTx) error) error {
	var err error
	for attempt := 1; attempt <= constants.MaxTxRetries; attempt++ {
		err = r.runTx(ctx, fn)
		if err == nil || !isRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", constants.MaxTxRetries, err)
}

func (r *LedgerRepository) runTx(ctx context.Context, fn func(tx database.LedgerTx) error) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&ledgerTx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RecordsForClass returns the records of one class for one date and academic year.
func (r *LedgerRepository) RecordsForClass(ctx context.Context, classID int64, date time.Time, academicYearID int64) ([]database.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, student_id, school_class_id, academic_year_id, date, status, confidence, created_at
		FROM attendance_records
		WHERE school_class_id = $1 AND date = $2::date AND academic_year_id = $3
		ORDER BY student_id
	`, classID, database.FormatDate(date), academicYearID)
	if err != nil {
		return nil, fmt.Errorf("query attendance records: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

// StudentHistory returns a student's records, newest first. A nil classIDs
// means no restriction; an empty slice matches nothing.
func (r *LedgerRepository) StudentHistory(ctx context.Context, studentID int64, classIDs []int64) ([]database.HistoryRecord, error) {
	if classIDs != nil && len(classIDs) == 0 {
		return nil, nil
	}

	b := psql.Select(
		"ar.date", "ar.status", "ar.confidence", "ar.school_class_id",
		"c.grade", "c.section", "y.year",
	).
		From("attendance_records ar").
		Join("school_classes c ON c.id = ar.school_class_id").
		Join("academic_years y ON y.id = ar.academic_year_id").
		Where(sq.Eq{"ar.student_id": studentID}).
		OrderBy("ar.date DESC", "c.grade", "c.section")
	if classIDs != nil {
		b = b.Where(sq.Eq{"ar.school_class_id": classIDs})
	}

	rows, err := r.pool.QueryBuilder(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query student history: %w", err)
	}
	defer rows.Close()

	var history []database.HistoryRecord
	for rows.Next() {
		var h database.HistoryRecord
		var status string
		if err := rows.Scan(&h.Date, &status, &h.Confidence, &h.ClassID, &h.Grade, &h.Section, &h.AcademicYear); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		h.Status = database.Status(status)
		h.Date = database.DateOf(h.Date)
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate student history: %w", err)
	}
	return history, nil
}

func scanRecord(row rowScanner) (database.AttendanceRecord, error) {
	var rec database.AttendanceRecord
	var status string
	if err := row.Scan(&rec.ID, &rec.StudentID, &rec.ClassID, &rec.AcademicYearID, &rec.Date, &status, &rec.Confidence, &rec.CreatedAt); err != nil {
		return rec, err
	}
	rec.Status = database.Status(status)
	rec.Date = database.DateOf(rec.Date)
	return rec, nil
}

// ledgerTx implements database.LedgerTx on a sql.Tx. Locks are transaction
// scoped advisory locks, released on commit or rollback.
type ledgerTx struct {
	tx *sql.Tx
}

func (t *ledgerTx) advisoryLock(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", name); err != nil {
		return fmt.Errorf("advisory lock %s: %w", name, err)
	}
	return nil
}

func (t *ledgerTx) LockKey(ctx context.Context, key database.RecordKey) error {
	return t.advisoryLock(ctx, "attendance:"+key.String())
}

func (t *ledgerTx) GetRecord(ctx context.Context, key database.RecordKey) (*database.AttendanceRecord, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, student_id, school_class_id, academic_year_id, date, status, confidence, created_at
		FROM attendance_records
		WHERE student_id = $1 AND school_class_id = $2 AND date = $3::date AND academic_year_id = $4
	`, key.StudentID, key.ClassID, database.FormatDate(key.Date), key.AcademicYearID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance record: %w", err)
	}
	return &rec, nil
}

// PutRecord upserts on the record key, so a row created by a concurrent
// writer since GetRecord is overwritten rather than duplicated.
func (t *ledgerTx) PutRecord(ctx context.Context, key database.RecordKey, status database.Status, confidence float64, now time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO attendance_records
			(student_id, school_class_id, academic_year_id, date, status, confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $7)
		ON CONFLICT ON CONSTRAINT attendance_records_key
		DO UPDATE SET status = EXCLUDED.status, confidence = EXCLUDED.confidence, updated_at = EXCLUDED.updated_at
	`, key.StudentID, key.ClassID, key.AcademicYearID, database.FormatDate(key.Date), string(status), confidence, now)
	if err != nil {
		return fmt.Errorf("put attendance record: %w", err)
	}
	return nil
}

func (t *ledgerTx) LockTeacherDay(ctx context.Context, teacherID int64, date time.Time) error {
	return t.advisoryLock(ctx, fmt.Sprintf("excuse:%d:%s", teacherID, database.FormatDate(date)))
}

func (t *ledgerTx) CountExcuses(ctx context.Context, teacherID int64, date time.Time) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM manual_excuse_logs WHERE teacher_id = $1 AND date = $2::date",
		teacherID, database.FormatDate(date),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count excuses: %w", err)
	}
	return n, nil
}

func (t *ledgerTx) AppendExcuse(ctx context.Context, entry database.ExcuseLogEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO manual_excuse_logs (id, teacher_id, student_id, school_class_id, date, created_at)
		VALUES ($1, $2, $3, $4, $5::date, $6)
	`, entry.ID, entry.TeacherID, entry.StudentID, entry.ClassID, database.FormatDate(entry.Date), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append excuse log: %w", err)
	}
	return nil
}

var (
	_ database.LedgerStore = (*LedgerRepository)(nil)
	_ database.LedgerTx    = (*ledgerTx)(nil)
)
