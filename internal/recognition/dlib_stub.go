//go:build !dlib

package recognition

import (
	"errors"

	"github.com/kozaktomas/face-attendance/internal/config"
)

func newDlibBackend(cfg *config.EmbeddingConfig) (Extractor, error) {
	return nil, errors.New("binary built without dlib support (rebuild with -tags dlib)")
}
