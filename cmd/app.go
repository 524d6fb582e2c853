package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/faceindex"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// app holds the components shared by the commands
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	extractor recognition.Extractor
	encodings database.EncodingWriter
	service   *attendance.Service
}

// newApp connects to PostgreSQL and wires the recognition and ledger
// components from cfg.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := slog.Default()

	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	if err := postgres.Initialize(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	roster, err := database.GetRosterReader(ctx)
	if err != nil {
		return nil, err
	}
	encodings, err := database.GetEncodingWriter(ctx)
	if err != nil {
		return nil, err
	}
	store, err := database.GetLedgerStore(ctx)
	if err != nil {
		return nil, err
	}

	policy := cfg.Policy
	distance, err := facematch.MetricByName(policy.Match.DistanceMetric)
	if err != nil {
		return nil, err
	}

	extractor := recognition.New(&cfg.Embedding, logger)
	capability := extractor.Capability()
	if capability.Available {
		logger.Info("face recognition available", "backend", capability.Backend, "dim", capability.Dim)
	} else {
		logger.Warn("face recognition unavailable, frames will report no detections", "reason", capability.Reason)
	}

	builder := faceindex.NewBuilder(roster, extractor, os.DirFS(cfg.Media.Root),
		faceindex.WithMaxSide(policy.Image.MaxSide),
		faceindex.WithDim(capability.Dim),
		faceindex.WithLogger(logger),
	)
	cache := faceindex.NewCache(builder, policy.Index.FreshnessWindow(), faceindex.WithCacheLogger(logger))
	matcher := facematch.NewMatcher(extractor,
		facematch.WithTolerance(policy.Match.Tolerance),
		facematch.WithDistance(distance),
		facematch.WithLogger(logger),
	)
	l := ledger.New(roster, store,
		ledger.WithDailyLimit(policy.Excuse.DailyLimit),
		ledger.WithLocation(cfg.School.Location()),
		ledger.WithPhotoURL(cfg.Media.PhotoURL),
		ledger.WithLogger(logger),
	)
	svc := attendance.NewService(roster, cache, matcher, l,
		attendance.WithMaxSide(policy.Image.MaxSide),
		attendance.WithDistanceMetric(policy.Match.DistanceMetric),
		attendance.WithLogger(logger),
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		extractor: extractor,
		encodings: encodings,
		service:   svc,
	}, nil
}

// regenerator returns a primary encoding regenerator over the media root
func (a *app) regenerator() *attendance.Regenerator {
	return attendance.NewRegenerator(a.encodings, a.extractor, os.DirFS(a.cfg.Media.Root), a.logger)
}

// Close releases the extractor and the database pool
func (a *app) Close() {
	if c, ok := a.extractor.(interface{ Close() }); ok {
		c.Close()
	}
	if pool := postgres.GetGlobalPool(); pool != nil {
		pool.Close()
	}
}

// outputJSON writes data to stdout as indented JSON
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
