package attendance

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// StudentDiagnostics describes the reference material of one student
type StudentDiagnostics struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	HasPhoto    bool   `json:"has_photo"`
	HasEncoding bool   `json:"has_encoding"`
	Samples     int    `json:"samples"`
	Entries     int    `json:"index_entries"`
}

// Diagnostics describes how well a class can be recognized
type Diagnostics struct {
	Capability      recognition.Capability     `json:"capability"`
	ClassID         int64                      `json:"class_id"`
	Class           string                     `json:"class"`
	Students        []StudentDiagnostics       `json:"students"`
	TotalEncodings  int                        `json:"total_encodings"`
	IndexEntries    int                        `json:"index_entries"`
	CachedClasses   int                        `json:"cached_classes"`
	ConfusablePairs []facematch.ConfusablePair `json:"confusable_pairs"`
}

// Diagnose reports per-student photo and encoding presence for classID and
// the student pairs whose known faces lie within the match tolerance.
func (s *Service) Diagnose(ctx context.Context, classID int64) (*Diagnostics, error) {
	class, err := s.roster.GetClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("get class %d: %w", classID, err)
	}
	if class == nil {
		return nil, ledger.ErrClassNotFound
	}

	students, err := s.roster.ListStudents(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list students of class %d: %w", classID, err)
	}

	index, err := s.cache.Get(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("class index %d: %w", classID, err)
	}
	perStudent := make(map[int64]int, len(students))
	for _, e := range index.Entries {
		perStudent[e.StudentID]++
	}

	d := &Diagnostics{
		Capability:      s.matcher.Capability(),
		ClassID:         classID,
		Class:           class.Label(),
		Students:        make([]StudentDiagnostics, 0, len(students)),
		IndexEntries:    index.Len(),
		CachedClasses:   s.cache.Len(),
		ConfusablePairs: []facematch.ConfusablePair{},
	}
	for i := range students {
		st := &students[i]
		samples, err := s.roster.ListSamples(ctx, st.ID)
		if err != nil {
			return nil, fmt.Errorf("list samples of student %d: %w", st.ID, err)
		}
		row := StudentDiagnostics{
			ID:          st.ID,
			Name:        st.FullName(),
			HasPhoto:    st.PhotoPath != "",
			HasEncoding: len(st.FaceEncoding) > 0,
			Samples:     len(samples),
			Entries:     perStudent[st.ID],
		}
		if row.HasEncoding {
			d.TotalEncodings++
		}
		d.Students = append(d.Students, row)
	}

	distance, err := facematch.MetricByName(s.metric)
	if err != nil {
		return nil, err
	}
	graph := facematch.NewNeighborGraph(index, s.metric)
	if pairs := graph.ConfusablePairs(s.matcher.Tolerance(), constants.ConfusableNeighbors, distance); pairs != nil {
		d.ConfusablePairs = pairs
	}
	return d, nil
}
