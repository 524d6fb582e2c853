package database

import (
	"context"
	"time"
)

// RosterReader provides read-only access to classes, students and teachers.
// Get methods return nil, nil when the row does not exist.
type RosterReader interface {
	// GetClass retrieves a class with its academic year label
	GetClass(ctx context.Context, classID int64) (*SchoolClass, error)
	// ListClasses returns every class ordered by grade and section
	ListClasses(ctx context.Context) ([]SchoolClass, error)
	// GetStudent retrieves a student by user id
	GetStudent(ctx context.Context, studentID int64) (*Student, error)
	// ListStudents returns the students enrolled in a class in roster order
	ListStudents(ctx context.Context, classID int64) ([]Student, error)
	// ListSamples returns a student's face samples in creation order
	ListSamples(ctx context.Context, studentID int64) ([]FaceSample, error)
	// TeacherByUser retrieves the teacher profile owned by a user
	TeacherByUser(ctx context.Context, userID int64) (*Teacher, error)
}

// EncodingWriter maintains students' primary face encodings
type EncodingWriter interface {
	RosterReader
	// StudentsWithPhotos returns students that have a photo, restricted to
	// those without an encoding unless force is set
	StudentsWithPhotos(ctx context.Context, force bool) ([]Student, error)
	// SaveFaceEncoding stores a student's primary encoding
	SaveFaceEncoding(ctx context.Context, studentID int64, encoding Embedding) error
}

// LedgerTx is the set of operations the ledger performs inside one
// transaction. Implementations serialize writers per key and per
// teacher/day so read-then-write sequences are safe.
type LedgerTx interface {
	// LockKey takes an exclusive lock on one record key until the tx ends
	LockKey(ctx context.Context, key RecordKey) error
	// GetRecord returns the record for key, or nil if none exists
	GetRecord(ctx context.Context, key RecordKey) (*AttendanceRecord, error)
	// PutRecord creates or overwrites the record for key
	PutRecord(ctx context.Context, key RecordKey, status Status, confidence float64, now time.Time) error
	// LockTeacherDay takes an exclusive lock on a teacher's excuse quota for one date
	LockTeacherDay(ctx context.Context, teacherID int64, date time.Time) error
	// CountExcuses counts audit entries of a teacher for one date
	CountExcuses(ctx context.Context, teacherID int64, date time.Time) (int, error)
	// AppendExcuse writes one audit entry
	AppendExcuse(ctx context.Context, entry ExcuseLogEntry) error
}

// LedgerStore persists attendance records and the excuse audit log
type LedgerStore interface {
	// WithinTx runs fn in a single transaction. fn may be invoked again after
	// a retryable conflict, so it must not keep state across invocations.
	// Nothing fn wrote is visible if it returns an error.
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
	// RecordsForClass returns the records of one class for one date and academic year
	RecordsForClass(ctx context.Context, classID int64, date time.Time, academicYearID int64) ([]AttendanceRecord, error)
	// StudentHistory returns a student's records, newest first. A nil classIDs
	// means no restriction; an empty slice matches nothing.
	StudentHistory(ctx context.Context, studentID int64, classIDs []int64) ([]HistoryRecord, error)
}
