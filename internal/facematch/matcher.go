package facematch

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/faceindex"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// Detection is the match outcome for one face found in a frame
type Detection struct {
	Box        recognition.Box `json:"box"`
	Distance   *float64        `json:"distance"`
	StudentID  *int64          `json:"student_id"`
	Name       string          `json:"name"`
	Confidence *float64        `json:"confidence"`
}

// Matched reports whether the face was attributed to a student
func (d *Detection) Matched() bool {
	return d.StudentID != nil
}

// MatchedFace is one (student, confidence) pair handed to the ledger
type MatchedFace struct {
	StudentID  int64
	Confidence float64
}

// FrameResult is the outcome of matching one frame
type FrameResult struct {
	Detections          []Detection
	CapabilityAvailable bool
}

// MatchedFaces returns the matched detections in frame order
func (r *FrameResult) MatchedFaces() []MatchedFace {
	var out []MatchedFace
	for _, d := range r.Detections {
		if d.Matched() {
			out = append(out, MatchedFace{StudentID: *d.StudentID, Confidence: *d.Confidence})
		}
	}
	return out
}

// Matcher attributes faces in a frame to students of a class index
type Matcher struct {
	extractor  recognition.Extractor
	capability recognition.Capability
	tolerance  float64
	distance   DistanceFunc
	logger     *slog.Logger
}

// Option configures a Matcher
type Option func(*Matcher)

// WithTolerance sets the exclusive match threshold
func WithTolerance(tolerance float64) Option {
	return func(m *Matcher) { m.tolerance = tolerance }
}

// WithDistance sets the distance metric
func WithDistance(fn DistanceFunc) Option {
	return func(m *Matcher) { m.distance = fn }
}

// WithLogger sets the matcher's logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) { m.logger = logger }
}

// NewMatcher creates a matcher. The extractor's capability is captured once.
func NewMatcher(extractor recognition.Extractor, opts ...Option) *Matcher {
	m := &Matcher{
		extractor:  extractor,
		capability: extractor.Capability(),
		tolerance:  constants.DefaultMatchTolerance,
		distance:   EuclideanDistance,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Available reports whether frames can be matched at all
func (m *Matcher) Available() bool {
	return m.capability.Available
}

// Capability returns the captured capability descriptor
func (m *Matcher) Capability() recognition.Capability {
	return m.capability
}

// Tolerance returns the match threshold
func (m *Matcher) Tolerance() float64 {
	return m.tolerance
}

// Match detects the faces in frame and attributes each to its nearest index
// entry. It never writes anything. Without the capability it returns an
// empty result with CapabilityAvailable unset.
func (m *Matcher) Match(ctx context.Context, frame []byte, index *faceindex.ClassIndex) (*FrameResult, error) {
	if !m.capability.Available {
		return &FrameResult{Detections: []Detection{}}, nil
	}

	faces, err := m.extractor.Detect(ctx, frame, recognition.DetectOptions{})
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	result := &FrameResult{
		Detections:          make([]Detection, 0, len(faces)),
		CapabilityAvailable: true,
	}
	for _, f := range faces {
		result.Detections = append(result.Detections, m.matchFace(f, index))
	}
	return result, nil
}

// matchFace compares one face with every entry
func (m *Matcher) matchFace(f recognition.Face, index *faceindex.ClassIndex) Detection {
	d := Detection{Box: f.Box, Name: constants.UnknownFaceName}
	if index.IsEmpty() {
		return d
	}

	best, dist := Nearest(f.Embedding, index.Entries, m.distance)
	if best < 0 {
		return d
	}
	d.Distance = &dist
	if dist < m.tolerance {
		entry := index.Entries[best]
		conf := Confidence(dist)
		d.StudentID = &entry.StudentID
		d.Name = entry.Name
		d.Confidence = &conf
	}
	return d
}

// Nearest returns the position and distance of the entry closest to emb.
// On equal distances the earliest entry wins. It returns -1 when no entry
// has a finite distance.
func Nearest(emb database.Embedding, entries []faceindex.Entry, distance DistanceFunc) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	for i, e := range entries {
		d := distance(emb, e.Embedding)
		if math.IsNaN(d) {
			continue
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

// Confidence converts a distance to a [0, 1] confidence score
func Confidence(distance float64) float64 {
	return max(0, min(1, 1-distance))
}
