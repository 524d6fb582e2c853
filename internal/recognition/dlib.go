//go:build dlib

package recognition

import (
	"context"
	"fmt"
	"sync"

	face "github.com/Kagami/go-face"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// dlibDim is the length of dlib's face descriptor
const dlibDim = 128

// DlibExtractor runs dlib's detector and ResNet descriptor in-process.
// The recognizer is not safe for concurrent use, calls are serialized.
type DlibExtractor struct {
	mu  sync.Mutex
	rec *face.Recognizer
}

// NewDlibExtractor loads the dlib models from modelsPath
func NewDlibExtractor(modelsPath string) (*DlibExtractor, error) {
	rec, err := face.NewRecognizer(modelsPath)
	if err != nil {
		return nil, fmt.Errorf("load dlib models from %s: %w", modelsPath, err)
	}
	return &DlibExtractor{rec: rec}, nil
}

func (d *DlibExtractor) Capability() Capability {
	return Capability{Available: true, Backend: BackendDlib, Dim: dlibDim}
}

// Detect runs HOG detection, or CNN detection when opts.Model is ModelCNN.
// go-face has no upsample knob, so Upsample is ignored.
func (d *DlibExtractor) Detect(ctx context.Context, image []byte, opts DetectOptions) ([]Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// go-face only decodes JPEG
	jpeg, err := PrepareJPEG(image, 0)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var found []face.Face
	if opts.Model == ModelCNN {
		found, err = d.rec.RecognizeCNN(jpeg)
	} else {
		found, err = d.rec.Recognize(jpeg)
	}
	if err != nil {
		return nil, fmt.Errorf("dlib recognize: %w", err)
	}

	faces := make([]Face, 0, len(found))
	for _, f := range found {
		r := f.Rectangle
		emb := make(database.Embedding, len(f.Descriptor))
		for i, v := range f.Descriptor {
			emb[i] = float64(v)
		}
		faces = append(faces, Face{
			Box:       Box{r.Min.Y, r.Max.X, r.Max.Y, r.Min.X},
			Embedding: emb,
		})
	}
	return faces, nil
}

// Close releases the dlib models
func (d *DlibExtractor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rec.Close()
}

func newDlibBackend(cfg *config.EmbeddingConfig) (Extractor, error) {
	return NewDlibExtractor(cfg.ModelsPath)
}
