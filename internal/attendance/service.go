// Package attendance ties the class index cache, the frame matcher and the
// ledger together into the operations exposed by the HTTP API and the CLI.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/faceindex"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// RecognizeResult is the response to one submitted frame
type RecognizeResult struct {
	FacesDetected       int                   `json:"faces_detected"`
	Matched             []int64               `json:"matched"`
	Detections          []facematch.Detection `json:"detections"`
	CapabilityAvailable bool                  `json:"capability_available"`
	NewlyMarked         int                   `json:"newly_marked"`
}

// Service runs recognition and attendance operations for authenticated callers
type Service struct {
	roster  database.RosterReader
	cache   *faceindex.Cache
	matcher *facematch.Matcher
	ledger  *ledger.Ledger
	access  *Access
	maxSide int
	metric  string
	logger  *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithMaxSide sets the longest side frames are scaled down to before detection
func WithMaxSide(px int) Option {
	return func(s *Service) { s.maxSide = px }
}

// WithDistanceMetric names the metric used by diagnostics, it should match the matcher's
func WithDistanceMetric(name string) Option {
	return func(s *Service) { s.metric = name }
}

// WithLogger sets the service's logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a service
func NewService(roster database.RosterReader, cache *faceindex.Cache, matcher *facematch.Matcher, l *ledger.Ledger, opts ...Option) *Service {
	s := &Service{
		roster:  roster,
		cache:   cache,
		matcher: matcher,
		ledger:  l,
		access:  NewAccess(roster),
		maxSide: constants.MaxImageSide,
		metric:  facematch.MetricEuclidean,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Access returns the service's access checker
func (s *Service) Access() *Access {
	return s.access
}

// Ledger returns the underlying ledger
func (s *Service) Ledger() *ledger.Ledger {
	return s.ledger
}

// Capability returns the recognition capability the matcher was built with
func (s *Service) Capability() recognition.Capability {
	return s.matcher.Capability()
}

// Authorize returns ErrClassNotFound for unknown classes and
// ErrForbiddenClass when p may not access classID.
func (s *Service) Authorize(ctx context.Context, p Principal, classID int64) (*database.SchoolClass, error) {
	class, err := s.roster.GetClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("get class %d: %w", classID, err)
	}
	if class == nil {
		return nil, ledger.ErrClassNotFound
	}
	ok, err := s.access.CanAccessClass(ctx, p, classID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbiddenClass
	}
	return class, nil
}

// Recognize matches the faces of one frame against classID and marks every
// matched student present for today. Without the recognition capability it
// reports zero detections. Frames without matches never touch the ledger.
func (s *Service) Recognize(ctx context.Context, frame []byte, classID int64) (*RecognizeResult, error) {
	result := &RecognizeResult{
		Matched:    []int64{},
		Detections: []facematch.Detection{},
	}
	if !s.matcher.Available() {
		return result, nil
	}

	prepared, err := recognition.PrepareJPEG(frame, s.maxSide)
	if err != nil {
		return nil, err
	}

	index, err := s.cache.Get(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("class index %d: %w", classID, err)
	}

	fr, err := s.matcher.Match(ctx, prepared, index)
	if err != nil {
		return nil, err
	}
	result.CapabilityAvailable = fr.CapabilityAvailable
	result.FacesDetected = len(fr.Detections)
	result.Detections = fr.Detections

	faces := fr.MatchedFaces()
	if len(faces) == 0 {
		return result, nil
	}

	seen := make(map[int64]bool, len(faces))
	matches := make([]ledger.Match, 0, len(faces))
	for _, f := range faces {
		matches = append(matches, ledger.Match{StudentID: f.StudentID, Confidence: f.Confidence})
		if !seen[f.StudentID] {
			seen[f.StudentID] = true
			result.Matched = append(result.Matched, f.StudentID)
		}
	}

	marked, err := s.ledger.RecordMatches(ctx, matches, classID, s.ledger.Today())
	switch {
	case errors.Is(err, ledger.ErrNoAcademicYear):
		s.logger.Warn("matches not recorded, class has no academic year", "class_id", classID, "matched", len(matches))
	case err != nil:
		return nil, err
	}
	result.NewlyMarked = marked

	s.logger.Debug("frame recognized",
		"class_id", classID, "faces", result.FacesDetected, "matched", len(result.Matched), "newly_marked", marked)
	return result, nil
}

// Excuse marks a student excused in their current class for today on
// behalf of p. Teachers are charged against their daily quota.
func (s *Service) Excuse(ctx context.Context, p Principal, studentID int64) (*ledger.ExcuseResult, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	student, err := s.roster.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student %d: %w", studentID, err)
	}
	if student == nil {
		return nil, ledger.ErrStudentNotFound
	}
	if student.ClassID == nil {
		return nil, ledger.ErrNotEnrolled
	}
	classID := *student.ClassID

	ok, err := s.access.CanAccessClass(ctx, p, classID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbiddenClass
	}

	teacherID, err := s.access.ActingTeacher(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.ledger.SetExcused(ctx, studentID, classID, teacherID, s.ledger.Today())
}

// Summary is a class snapshot with its status breakdown
type Summary struct {
	Snapshot  *ledger.Snapshot
	Breakdown ledger.StatusBreakdown
}

// Summary returns the attendance of classID on date. Only staff with
// access to the class may read it.
func (s *Service) Summary(ctx context.Context, p Principal, classID int64, date time.Time) (*Summary, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	if _, err := s.Authorize(ctx, p, classID); err != nil {
		return nil, err
	}
	snap, err := s.ledger.Snapshot(ctx, classID, date)
	if err != nil {
		return nil, err
	}
	return &Summary{Snapshot: snap, Breakdown: ledger.Breakdown(snap.Rows)}, nil
}

// History returns a student's records restricted to the classes p may see
func (s *Service) History(ctx context.Context, p Principal, studentID int64) (*database.Student, []ledger.HistoryEntry, error) {
	if !p.IsStaff() {
		return nil, nil, ErrForbidden
	}
	student, err := s.roster.GetStudent(ctx, studentID)
	if err != nil {
		return nil, nil, fmt.Errorf("get student %d: %w", studentID, err)
	}
	if student == nil {
		return nil, nil, ledger.ErrStudentNotFound
	}

	allowed, err := s.access.AllowedClassIDs(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	if allowed != nil {
		if len(allowed) == 0 {
			return nil, nil, ErrNoClassesAssigned
		}
		if student.ClassID != nil && !slices.Contains(allowed, *student.ClassID) {
			return nil, nil, ErrForbiddenClass
		}
	}

	entries, err := s.ledger.StudentHistory(ctx, studentID, allowed)
	if err != nil {
		return nil, nil, err
	}
	return student, entries, nil
}
