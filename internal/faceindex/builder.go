package faceindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// IndexBuilder builds a fresh ClassIndex for one class
type IndexBuilder interface {
	Build(ctx context.Context, classID int64) (*ClassIndex, error)
}

// Builder builds class indexes from the roster: every student's primary
// encoding followed by one embedding per face sample photo.
type Builder struct {
	roster    database.RosterReader
	extractor recognition.Extractor
	media     fs.FS
	maxSide   int
	dim       int
	logger    *slog.Logger
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder)

// WithMaxSide sets the longest side sample photos are scaled down to
func WithMaxSide(px int) BuilderOption {
	return func(b *Builder) { b.maxSide = px }
}

// WithDim pins the expected embedding length. Without it the length of the
// first accepted entry is used.
func WithDim(dim int) BuilderOption {
	return func(b *Builder) { b.dim = dim }
}

// WithLogger sets the builder's logger
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = logger }
}

// NewBuilder creates a builder reading sample photos from media
func NewBuilder(roster database.RosterReader, extractor recognition.Extractor, media fs.FS, opts ...BuilderOption) *Builder {
	b := &Builder{
		roster:    roster,
		extractor: extractor,
		media:     media,
		maxSide:   constants.MaxImageSide,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the index for classID. A missing class yields an empty
// index. Per-student problems are logged and skipped, only roster read
// failures are returned.
func (b *Builder) Build(ctx context.Context, classID int64) (*ClassIndex, error) {
	ix := &ClassIndex{ClassID: classID}

	class, err := b.roster.GetClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("get class %d: %w", classID, err)
	}
	if class == nil {
		b.logger.Warn("class not found, using empty index", "class_id", classID)
		return ix, nil
	}

	students, err := b.roster.ListStudents(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list students of class %d: %w", classID, err)
	}

	extract := b.extractor != nil && b.extractor.Capability().Available
	dim := b.dim
	add := func(s *database.Student, emb database.Embedding, source string) {
		if len(emb) == 0 {
			return
		}
		if dim == 0 {
			dim = len(emb)
		}
		if len(emb) != dim {
			b.logger.Warn("skipping embedding with wrong dimensionality",
				"student_id", s.ID, "source", source, "dim", len(emb), "expected", dim)
			return
		}
		ix.Entries = append(ix.Entries, Entry{
			Embedding: emb,
			StudentID: s.ID,
			Name:      s.FullName(),
			Source:    source,
		})
	}

	for i := range students {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := &students[i]
		add(s, s.FaceEncoding, SourcePrimary)

		if !extract {
			continue
		}
		samples, err := b.roster.ListSamples(ctx, s.ID)
		if err != nil {
			b.logger.Warn("failed to list face samples", "student_id", s.ID, "error", err)
			continue
		}
		for _, sample := range samples {
			emb, err := b.sampleEmbedding(ctx, sample)
			if err != nil {
				if errors.Is(err, recognition.ErrUnavailable) {
					extract = false
					break
				}
				b.logger.Warn("skipping face sample",
					"student_id", s.ID, "sample_id", sample.ID, "path", sample.ImagePath, "error", err)
				continue
			}
			add(s, emb, SourceSample)
		}
	}

	b.logger.Debug("class index built",
		"class_id", classID, "students", len(students), "entries", len(ix.Entries))
	return ix, nil
}

// sampleEmbedding reads a sample photo and extracts its first face
func (b *Builder) sampleEmbedding(ctx context.Context, sample database.FaceSample) (database.Embedding, error) {
	data, err := fs.ReadFile(b.media, strings.TrimPrefix(sample.ImagePath, "/"))
	if err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}
	img, err := recognition.PrepareJPEG(data, b.maxSide)
	if err != nil {
		return nil, err
	}
	return recognition.ExtractFirst(ctx, b.extractor, img)
}
