package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockLedgerStore is an in-memory database.LedgerStore. Transactions are
// serialized and their writes are staged until commit, so a failing
// transaction leaves no trace.
type MockLedgerStore struct {
	txMu    sync.Mutex // serializes transactions
	mu      sync.RWMutex
	roster  *MockRoster
	records map[string]*database.AttendanceRecord
	excuses []database.ExcuseLogEntry
	nextID  int64

	committedTxs  int
	rolledBackTxs int

	// Error injection
	BeginError    error
	CommitError   error
	RecordsError  error
	HistoryError  error
	CountError    error
	AppendError   error
	PutRecordHook func(key database.RecordKey) error // called before every staged put
}

// NewMockLedgerStore creates a new mock ledger store. roster is used to join
// class details into history rows and may be nil.
func NewMockLedgerStore(roster *MockRoster) *MockLedgerStore {
	return &MockLedgerStore{
		roster:  roster,
		records: make(map[string]*database.AttendanceRecord),
	}
}

// SeedRecord stores a record directly, bypassing the ledger rules
func (m *MockLedgerStore) SeedRecord(rec database.AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	rec.Date = database.DateOf(rec.Date)
	m.records[rec.Key().String()] = &rec
}

// SeedExcuse appends an audit entry directly
func (m *MockLedgerStore) SeedExcuse(entry database.ExcuseLogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.Date = database.DateOf(entry.Date)
	m.excuses = append(m.excuses, entry)
}

// Record returns a copy of the stored record for key, or nil
func (m *MockLedgerStore) Record(key database.RecordKey) *database.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key.String()]
	if !ok {
		return nil
	}
	c := *rec
	return &c
}

// RecordCount returns the number of stored records
func (m *MockLedgerStore) RecordCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// ExcuseLog returns a copy of the audit log
func (m *MockLedgerStore) ExcuseLog() []database.ExcuseLogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.ExcuseLogEntry(nil), m.excuses...)
}

// TxStats returns the number of committed and rolled back transactions
func (m *MockLedgerStore) TxStats() (committed, rolledBack int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committedTxs, m.rolledBackTxs
}

// WithinTx runs fn against a staged view of the store and applies the
// staged writes only when fn and the commit succeed.
func (m *MockLedgerStore) WithinTx(ctx context.Context, fn func(tx database.LedgerTx) error) error {
	if m.BeginError != nil {
		return m.BeginError
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &mockLedgerTx{store: m, staged: make(map[string]*database.AttendanceRecord)}
	if err := fn(tx); err != nil {
		m.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		m.rollback()
		return fmt.Errorf("commit transaction: %w", err)
	}
	if m.CommitError != nil {
		m.rollback()
		return m.CommitError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, rec := range tx.staged {
		if existing, ok := m.records[k]; ok {
			rec.ID = existing.ID
			rec.CreatedAt = existing.CreatedAt
		} else {
			m.nextID++
			rec.ID = m.nextID
		}
		m.records[k] = rec
	}
	m.excuses = append(m.excuses, tx.excuses...)
	m.committedTxs++
	return nil
}

func (m *MockLedgerStore) rollback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolledBackTxs++
}

// RecordsForClass returns committed records of one class for a date and academic year
func (m *MockLedgerStore) RecordsForClass(ctx context.Context, classID int64, date time.Time, academicYearID int64) ([]database.AttendanceRecord, error) {
	if m.RecordsError != nil {
		return nil, m.RecordsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	date = database.DateOf(date)
	var result []database.AttendanceRecord
	for _, rec := range m.records {
		if rec.ClassID == classID && rec.AcademicYearID == academicYearID && rec.Date.Equal(date) {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, nil
}

// StudentHistory returns a student's records newest first, then by grade and section
func (m *MockLedgerStore) StudentHistory(ctx context.Context, studentID int64, classIDs []int64) ([]database.HistoryRecord, error) {
	if m.HistoryError != nil {
		return nil, m.HistoryError
	}
	var allowed map[int64]bool
	if classIDs != nil {
		allowed = make(map[int64]bool, len(classIDs))
		for _, id := range classIDs {
			allowed[id] = true
		}
	}

	m.mu.RLock()
	var recs []database.AttendanceRecord
	for _, rec := range m.records {
		if rec.StudentID != studentID {
			continue
		}
		if allowed != nil && !allowed[rec.ClassID] {
			continue
		}
		recs = append(recs, *rec)
	}
	m.mu.RUnlock()

	result := make([]database.HistoryRecord, 0, len(recs))
	for _, rec := range recs {
		h := database.HistoryRecord{
			Date:       rec.Date,
			Status:     rec.Status,
			Confidence: rec.Confidence,
			ClassID:    rec.ClassID,
		}
		if m.roster != nil {
			if class, _ := m.roster.GetClass(ctx, rec.ClassID); class != nil {
				h.Grade = class.Grade
				h.Section = class.Section
				h.AcademicYear = class.AcademicYear
			}
		}
		result = append(result, h)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if a.Grade != b.Grade {
			return a.Grade < b.Grade
		}
		return a.Section < b.Section
	})
	return result, nil
}

// mockLedgerTx is the staged view handed to WithinTx callbacks
type mockLedgerTx struct {
	store   *MockLedgerStore
	staged  map[string]*database.AttendanceRecord
	excuses []database.ExcuseLogEntry
}

// LockKey is a no-op, transactions are already serialized
func (tx *mockLedgerTx) LockKey(ctx context.Context, key database.RecordKey) error {
	return ctx.Err()
}

func (tx *mockLedgerTx) GetRecord(ctx context.Context, key database.RecordKey) (*database.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k := key.String()
	if rec, ok := tx.staged[k]; ok {
		c := *rec
		return &c, nil
	}
	return tx.store.Record(key), nil
}

func (tx *mockLedgerTx) PutRecord(ctx context.Context, key database.RecordKey, status database.Status, confidence float64, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if hook := tx.store.PutRecordHook; hook != nil {
		if err := hook(key); err != nil {
			return err
		}
	}
	key.Date = database.DateOf(key.Date)
	tx.staged[key.String()] = &database.AttendanceRecord{
		StudentID:      key.StudentID,
		ClassID:        key.ClassID,
		AcademicYearID: key.AcademicYearID,
		Date:           key.Date,
		Status:         status,
		Confidence:     confidence,
		CreatedAt:      now,
	}
	return nil
}

// LockTeacherDay is a no-op, transactions are already serialized
func (tx *mockLedgerTx) LockTeacherDay(ctx context.Context, teacherID int64, date time.Time) error {
	return ctx.Err()
}

func (tx *mockLedgerTx) CountExcuses(ctx context.Context, teacherID int64, date time.Time) (int, error) {
	if tx.store.CountError != nil {
		return 0, tx.store.CountError
	}
	date = database.DateOf(date)
	count := 0
	for _, e := range tx.store.ExcuseLog() {
		if e.TeacherID == teacherID && e.Date.Equal(date) {
			count++
		}
	}
	for _, e := range tx.excuses {
		if e.TeacherID == teacherID && e.Date.Equal(date) {
			count++
		}
	}
	return count, nil
}

func (tx *mockLedgerTx) AppendExcuse(ctx context.Context, entry database.ExcuseLogEntry) error {
	if tx.store.AppendError != nil {
		return tx.store.AppendError
	}
	entry.Date = database.DateOf(entry.Date)
	tx.excuses = append(tx.excuses, entry)
	return nil
}

// Ensure interface compliance
var (
	_ database.LedgerStore = (*MockLedgerStore)(nil)
	_ database.LedgerTx    = (*mockLedgerTx)(nil)
)
