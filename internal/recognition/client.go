package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// FaceClient computes face embeddings using the embedding server
type FaceClient struct {
	baseURL string
	dim     int
	client  *http.Client
}

// NewFaceClient creates a new face embedding client. dim is the expected
// embedding length and is only reported through Capability.
func NewFaceClient(baseURL string, dim int) *FaceClient {
	return &FaceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float64 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Capability reports the http backend as available whenever a URL is set
func (c *FaceClient) Capability() Capability {
	if c.baseURL == "" {
		return Capability{Available: false, Backend: BackendHTTP, Reason: "embedding server URL is not set"}
	}
	return Capability{Available: true, Backend: BackendHTTP, Dim: c.dim}
}

// Detect posts the image to /embed/face and converts the detections
func (c *FaceClient) Detect(ctx context.Context, image []byte, opts DetectOptions) ([]Face, error) {
	if c.baseURL == "" {
		return nil, ErrUnavailable
	}

	body, err := c.postMultipartImage(ctx, "/embed/face"+detectQuery(opts), image)
	if err != nil {
		return nil, err
	}

	var resp FaceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	faces := make([]Face, 0, len(resp.Faces))
	for _, d := range resp.Faces {
		if len(d.Embedding) == 0 {
			continue
		}
		var box Box
		if len(d.BBox) == 4 {
			box = FromCorners(d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3])
		}
		faces = append(faces, Face{
			Box:       box,
			Embedding: database.Embedding(d.Embedding),
			Score:     d.DetScore,
		})
	}
	return faces, nil
}

func detectQuery(opts DetectOptions) string {
	q := url.Values{}
	if opts.Model != ModelDefault {
		q.Set("model", opts.Model)
	}
	if opts.Upsample > 0 {
		q.Set("upsample", strconv.Itoa(opts.Upsample))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (c *FaceClient) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	return "application/octet-stream"
}
