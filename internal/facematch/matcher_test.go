package facematch_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/faceindex"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	recmock "github.com/kozaktomas/face-attendance/internal/recognition/mock"
)

func face(v ...float64) recognition.Face {
	return recognition.Face{Box: recognition.Box{1, 2, 3, 4}, Embedding: database.Embedding(v)}
}

func index(entries ...faceindex.Entry) *faceindex.ClassIndex {
	return &faceindex.ClassIndex{ClassID: 1, Entries: entries}
}

func entry(student int64, name string, v ...float64) faceindex.Entry {
	return faceindex.Entry{StudentID: student, Name: name, Embedding: database.Embedding(v)}
}

func TestMatcher_NearestWithinTolerance(t *testing.T) {
	ext := recmock.NewMockExtractor(face(0, 0))
	m := facematch.NewMatcher(ext)

	res, err := m.Match(context.Background(), []byte("frame"), index(
		entry(1, "Far", 1, 1),
		entry(2, "Near", 0.1, 0),
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.CapabilityAvailable {
		t.Error("expected capability flag to be set")
	}
	if len(res.Detections) != 1 {
		t.Fatalf("expected one detection, got %d", len(res.Detections))
	}
	d := res.Detections[0]
	if d.StudentID == nil || *d.StudentID != 2 || d.Name != "Near" {
		t.Fatalf("expected match to student 2, got %+v", d)
	}
	if math.Abs(*d.Distance-0.1) > 1e-9 || math.Abs(*d.Confidence-0.9) > 1e-9 {
		t.Errorf("unexpected distance/confidence %v/%v", *d.Distance, *d.Confidence)
	}
	if d.Box != (recognition.Box{1, 2, 3, 4}) {
		t.Errorf("expected box to be carried over, got %v", d.Box)
	}
}

func TestMatcher_ToleranceBoundaryIsExclusive(t *testing.T) {
	tests := []struct {
		name      string
		tolerance float64
		matched   bool
	}{
		{"distance below tolerance", 0.5000001, true},
		{"distance equal to tolerance", 0.5, false},
		{"distance above tolerance", 0.4999999, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := recmock.NewMockExtractor(face(0, 0))
			m := facematch.NewMatcher(ext, facematch.WithTolerance(tt.tolerance))

			// distance is exactly 0.5
			res, err := m.Match(context.Background(), nil, index(entry(7, "Ada", 0.5, 0)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			d := res.Detections[0]
			if d.Matched() != tt.matched {
				t.Errorf("expected matched=%v, got %+v", tt.matched, d)
			}
			if d.Distance == nil || *d.Distance != 0.5 {
				t.Errorf("expected distance 0.5 to be reported either way, got %v", d.Distance)
			}
			if !tt.matched && (d.Name != "Unknown" || d.Confidence != nil) {
				t.Errorf("expected unknown face without confidence, got %+v", d)
			}
		})
	}
}

func TestMatcher_TieBreakFirstEntryWins(t *testing.T) {
	ext := recmock.NewMockExtractor(face(0, 0))
	m := facematch.NewMatcher(ext)

	res, _ := m.Match(context.Background(), nil, index(
		entry(5, "First", 0, 0.2),
		entry(3, "Second", 0.2, 0),
	))

	if got := *res.Detections[0].StudentID; got != 5 {
		t.Errorf("expected first entry to win the tie, got student %d", got)
	}
}

func TestMatcher_EmptyIndex(t *testing.T) {
	ext := recmock.NewMockExtractor(face(0, 0), face(1, 1))
	m := facematch.NewMatcher(ext)

	res, err := m.Match(context.Background(), nil, index())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Detections) != 2 {
		t.Fatalf("expected both faces reported, got %d", len(res.Detections))
	}
	for _, d := range res.Detections {
		if d.Distance != nil || d.StudentID != nil || d.Name != "Unknown" {
			t.Errorf("expected unknown face without distance, got %+v", d)
		}
	}
	if len(res.MatchedFaces()) != 0 {
		t.Error("expected no matched faces")
	}
}

func TestMatcher_ZeroDetections(t *testing.T) {
	m := facematch.NewMatcher(recmock.NewMockExtractor())

	res, err := m.Match(context.Background(), nil, index(entry(1, "A", 0, 0)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Detections) != 0 || !res.CapabilityAvailable {
		t.Errorf("expected empty available result, got %+v", res)
	}
}

func TestMatcher_CapabilityUnavailable(t *testing.T) {
	ext := recmock.NewMockExtractor(face(0, 0))
	ext.Cap = recognition.Capability{Available: false, Reason: "no backend"}
	m := facematch.NewMatcher(ext)

	if m.Available() {
		t.Fatal("expected matcher to be unavailable")
	}
	res, err := m.Match(context.Background(), nil, index(entry(1, "A", 0, 0)))
	if err != nil {
		t.Fatalf("expected flagged result, got error %v", err)
	}
	if res.CapabilityAvailable || len(res.Detections) != 0 {
		t.Errorf("expected empty unavailable result, got %+v", res)
	}
	if ext.CallCount() != 0 {
		t.Error("expected the extractor not to be called")
	}
}

func TestMatcher_DetectError(t *testing.T) {
	ext := recmock.NewMockExtractor()
	ext.DetectError = errors.New("boom")

	if _, err := facematch.NewMatcher(ext).Match(context.Background(), nil, index()); err == nil {
		t.Fatal("expected detection error")
	}
}

func TestMatcher_CosineMetric(t *testing.T) {
	ext := recmock.NewMockExtractor(face(1, 0))
	m := facematch.NewMatcher(ext, facematch.WithDistance(facematch.CosineDistance), facematch.WithTolerance(0.1))

	// Same direction, very different magnitude: cosine distance 0
	res, _ := m.Match(context.Background(), nil, index(entry(4, "Dir", 10, 0)))
	if !res.Detections[0].Matched() {
		t.Errorf("expected cosine match, got %+v", res.Detections[0])
	}
}

func TestMatcher_MatchedFacesKeepsFrameOrder(t *testing.T) {
	ext := recmock.NewMockExtractor(face(1, 1), face(5, 5), face(0, 0))
	m := facematch.NewMatcher(ext)

	res, _ := m.Match(context.Background(), nil, index(
		entry(10, "A", 0, 0),
		entry(20, "B", 1, 1),
	))

	got := res.MatchedFaces()
	if len(got) != 2 || got[0].StudentID != 20 || got[1].StudentID != 10 {
		t.Errorf("unexpected matched faces %+v", got)
	}
	if got[0].Confidence != 1 {
		t.Errorf("expected confidence 1 for an exact match, got %v", got[0].Confidence)
	}
}

func TestNearest_SkipsMismatchedDimensions(t *testing.T) {
	entries := []faceindex.Entry{
		entry(1, "Wrong", 0, 0, 0),
		entry(2, "Right", 0.3, 0),
	}
	i, d := facematch.Nearest(database.Embedding{0, 0}, entries, facematch.EuclideanDistance)
	if i != 1 || math.Abs(d-0.3) > 1e-9 {
		t.Errorf("expected entry 1 at 0.3, got %d at %v", i, d)
	}

	i, _ = facematch.Nearest(database.Embedding{0}, entries, facematch.EuclideanDistance)
	if i != -1 {
		t.Errorf("expected -1 when no entry is comparable, got %d", i)
	}
}
