package recognition

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// detectionLadder is tried in order until a pass finds a face.
var detectionLadder = []DetectOptions{
	{Model: ModelDefault},
	{Model: ModelHOG, Upsample: constants.UpsampleFallback},
	{Model: ModelCNN},
}

// ExtractFirst returns the embedding of the first face found in image.
// Detection is retried with a 2x upsampled HOG pass and then a CNN pass
// before giving up with ErrNoFace.
func ExtractFirst(ctx context.Context, ext Extractor, image []byte) (database.Embedding, error) {
	if !ext.Capability().Available {
		return nil, ErrUnavailable
	}

	var lastErr error
	for _, opts := range detectionLadder {
		faces, err := ext.Detect(ctx, image, opts)
		if err != nil {
			if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrInvalidImage) || ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		for _, f := range faces {
			if len(f.Embedding) > 0 {
				return f.Embedding, nil
			}
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoFace, lastErr)
	}
	return nil, ErrNoFace
}
