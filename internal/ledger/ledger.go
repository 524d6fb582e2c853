// Package ledger records attendance. It owns every write to attendance
// records and to the manual excuse audit log.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

var (
	ErrClassNotFound   = errors.New("class not found")
	ErrNoAcademicYear  = errors.New("class has no academic year")
	ErrStudentNotFound = errors.New("student not found")
	ErrNotEnrolled     = errors.New("student is not enrolled in the class")
	ErrLimitReached    = errors.New("daily excuse limit reached")
)

// Ledger applies attendance state transitions on top of a LedgerStore
type Ledger struct {
	roster     database.RosterReader
	store      database.LedgerStore
	dailyLimit int
	now        func() time.Time
	loc        *time.Location
	photoURL   func(path string) string
	logger     *slog.Logger
}

// Option configures a Ledger
type Option func(*Ledger)

// WithDailyLimit sets the per-teacher daily excuse quota
func WithDailyLimit(limit int) Option {
	return func(l *Ledger) { l.dailyLimit = limit }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLocation sets the timezone calendar dates are taken in
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) { l.loc = loc }
}

// WithPhotoURL sets how snapshot rows turn photo paths into URLs
func WithPhotoURL(fn func(path string) string) Option {
	return func(l *Ledger) { l.photoURL = fn }
}

// WithLogger sets the ledger's logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates a ledger
func New(roster database.RosterReader, store database.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		roster:     roster,
		store:      store,
		dailyLimit: constants.DefaultExcuseDailyLimit,
		now:        time.Now,
		loc:        time.UTC,
		photoURL:   func(path string) string { return path },
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Today returns the current calendar date in the school timezone
func (l *Ledger) Today() time.Time {
	return database.DateOf(l.now().In(l.loc))
}

// DailyLimit returns the per-teacher excuse quota
func (l *Ledger) DailyLimit() int {
	return l.dailyLimit
}

// resolveClass loads a class and its academic year id
func (l *Ledger) resolveClass(ctx context.Context, classID int64) (*database.SchoolClass, int64, error) {
	class, err := l.roster.GetClass(ctx, classID)
	if err != nil {
		return nil, 0, fmt.Errorf("get class %d: %w", classID, err)
	}
	if class == nil {
		return nil, 0, ErrClassNotFound
	}
	if class.AcademicYearID == nil {
		return class, 0, ErrNoAcademicYear
	}
	return class, *class.AcademicYearID, nil
}
