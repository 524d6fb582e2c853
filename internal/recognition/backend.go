package recognition

import (
	"log/slog"

	"github.com/kozaktomas/face-attendance/internal/config"
)

// New builds the extractor selected by cfg. Misconfiguration never fails:
// it yields a Disabled extractor whose Capability explains why.
func New(cfg *config.EmbeddingConfig, logger *slog.Logger) Extractor {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendDlib:
		ext, err := newDlibBackend(cfg)
		if err != nil {
			logger.Warn("dlib face backend unavailable", "error", err)
			return Disabled{Reason: err.Error()}
		}
		return ext
	case BackendHTTP, "":
		if cfg.URL == "" {
			return Disabled{Reason: "EMBEDDING_URL is not set"}
		}
		return NewFaceClient(cfg.URL, cfg.Dim)
	default:
		logger.Warn("unknown face backend", "backend", cfg.Backend)
		return Disabled{Reason: "unknown face backend " + cfg.Backend}
	}
}
