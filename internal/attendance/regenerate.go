package attendance

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// RegenerateOptions selects which primary encodings are recomputed
type RegenerateOptions struct {
	Force   bool   // recompute even when an encoding exists
	Student string // id, username or full name; empty means every student
	// OnStudent, when set, is called after each student with the outcome
	OnStudent func(s *database.Student, outcome Outcome, err error)
	// OnTotal, when set, is called once with the number of candidates
	OnTotal func(total int)
}

// Outcome of regenerating one student's encoding
type Outcome string

const (
	OutcomeRegenerated Outcome = "regenerated"
	OutcomeKept        Outcome = "kept"
	OutcomeMissing     Outcome = "missing_photo"
	OutcomeNoFace      Outcome = "no_face"
	OutcomeFailed      Outcome = "failed"
)

// RegenerateStats summarizes one regeneration run
type RegenerateStats struct {
	Processed   int `json:"processed"`
	Regenerated int `json:"regenerated"`
	Skipped     int `json:"skipped"`
}

// Regenerator computes students' primary encodings from their photos
type Regenerator struct {
	store     database.EncodingWriter
	extractor recognition.Extractor
	media     fs.FS
	maxSide   int
	logger    *slog.Logger
}

// NewRegenerator creates a regenerator reading photos from media
func NewRegenerator(store database.EncodingWriter, extractor recognition.Extractor, media fs.FS, logger *slog.Logger) *Regenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Regenerator{
		store:     store,
		extractor: extractor,
		media:     media,
		maxSide:   constants.MaxImageSide,
		logger:    logger,
	}
}

// Regenerate walks the students with a photo and stores the embedding of
// the first face found in it. Students whose photo is missing or shows no
// face are skipped; only store failures abort the run.
func (r *Regenerator) Regenerate(ctx context.Context, opts RegenerateOptions) (*RegenerateStats, error) {
	if !r.extractor.Capability().Available {
		return nil, recognition.ErrUnavailable
	}

	students, err := r.store.StudentsWithPhotos(ctx, opts.Force || opts.Student != "")
	if err != nil {
		return nil, fmt.Errorf("list students with photos: %w", err)
	}
	if opts.Student != "" {
		filtered := students[:0]
		for i := range students {
			if facematch.MatchesStudent(opts.Student, &students[i]) {
				filtered = append(filtered, students[i])
			}
		}
		students = filtered
	}
	if opts.OnTotal != nil {
		opts.OnTotal(len(students))
	}

	stats := &RegenerateStats{}
	for i := range students {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		s := &students[i]
		stats.Processed++

		outcome, err := r.regenerateOne(ctx, s, opts.Force)
		if opts.OnStudent != nil {
			opts.OnStudent(s, outcome, err)
		}
		switch outcome {
		case OutcomeRegenerated:
			stats.Regenerated++
		case OutcomeFailed:
			if err != nil && !errors.Is(err, recognition.ErrInvalidImage) {
				return stats, err
			}
			stats.Skipped++
		default:
			stats.Skipped++
		}
	}

	r.logger.Info("face encodings regenerated",
		"processed", stats.Processed, "regenerated", stats.Regenerated, "skipped", stats.Skipped)
	return stats, nil
}

// Backfill fills missing encodings of every student with a photo
func (r *Regenerator) Backfill(ctx context.Context) (*RegenerateStats, error) {
	return r.Regenerate(ctx, RegenerateOptions{})
}

func (r *Regenerator) regenerateOne(ctx context.Context, s *database.Student, force bool) (Outcome, error) {
	if len(s.FaceEncoding) > 0 && !force {
		return OutcomeKept, nil
	}

	data, err := fs.ReadFile(r.media, strings.TrimPrefix(s.PhotoPath, "/"))
	if err != nil {
		r.logger.Warn("missing photo file", "student_id", s.ID, "path", s.PhotoPath, "error", err)
		return OutcomeMissing, nil
	}

	img, err := recognition.PrepareJPEG(data, r.maxSide)
	if err != nil {
		r.logger.Warn("unreadable photo", "student_id", s.ID, "path", s.PhotoPath, "error", err)
		return OutcomeFailed, err
	}

	emb, err := recognition.ExtractFirst(ctx, r.extractor, img)
	if err != nil {
		if errors.Is(err, recognition.ErrNoFace) {
			r.logger.Warn("no face detected in photo", "student_id", s.ID, "path", s.PhotoPath)
			return OutcomeNoFace, nil
		}
		return OutcomeFailed, fmt.Errorf("extract encoding of student %d: %w", s.ID, err)
	}

	if err := r.store.SaveFaceEncoding(ctx, s.ID, emb); err != nil {
		return OutcomeFailed, fmt.Errorf("save encoding of student %d: %w", s.ID, err)
	}
	return OutcomeRegenerated, nil
}
