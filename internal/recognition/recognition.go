// Package recognition wraps the face detection and embedding capability.
// Backends are opaque: they return bounding boxes and fixed-length embeddings.
package recognition

import (
	"context"
	"errors"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Backend names accepted in FACE_BACKEND
const (
	BackendHTTP = "http"
	BackendDlib = "dlib"
)

// Detection models understood by DetectOptions.Model
const (
	ModelDefault = ""
	ModelHOG     = "hog"
	ModelCNN     = "cnn"
)

var (
	// ErrUnavailable is returned when no recognition backend is configured
	ErrUnavailable = errors.New("face recognition capability unavailable")
	// ErrNoFace is returned when an image contains no detectable face
	ErrNoFace = errors.New("no face detected")
	// ErrInvalidImage is returned for data that cannot be decoded as an image
	ErrInvalidImage = errors.New("invalid image data")
)

// Capability describes whether face recognition can run in this process.
type Capability struct {
	Available bool   `json:"available"`
	Backend   string `json:"backend,omitempty"`
	Dim       int    `json:"dim,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Box is a face bounding box in pixels: top, right, bottom, left.
type Box [4]int

// FromCorners converts an [x1, y1, x2, y2] box.
func FromCorners(x1, y1, x2, y2 float64) Box {
	return Box{int(y1 + 0.5), int(x2 + 0.5), int(y2 + 0.5), int(x1 + 0.5)}
}

// Face is one detected face with its embedding
type Face struct {
	Box       Box
	Embedding database.Embedding
	Score     float64
}

// DetectOptions tunes a detection pass
type DetectOptions struct {
	Upsample int    // extra upsampling passes, 0 uses the backend default
	Model    string // ModelDefault, ModelHOG or ModelCNN
}

// Extractor detects faces and computes their embeddings
type Extractor interface {
	// Capability reports whether Detect can succeed at all
	Capability() Capability
	// Detect returns every face found in the encoded image
	Detect(ctx context.Context, image []byte, opts DetectOptions) ([]Face, error)
}

// Disabled is the Extractor used when no backend is configured
type Disabled struct {
	Reason string
}

func (d Disabled) Capability() Capability {
	return Capability{Available: false, Reason: d.Reason}
}

func (d Disabled) Detect(ctx context.Context, image []byte, opts DetectOptions) ([]Face, error) {
	return nil, ErrUnavailable
}
