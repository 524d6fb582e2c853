// Package mock provides a scriptable recognition.Extractor for tests.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// MockExtractor is a mock implementation of recognition.Extractor
type MockExtractor struct {
	mu    sync.Mutex
	calls []recognition.DetectOptions

	Cap recognition.Capability
	// Faces is returned by every Detect call unless DetectFunc is set
	Faces []recognition.Face
	// DetectFunc, when set, decides the result of each call. call is 0-based.
	DetectFunc func(call int, image []byte, opts recognition.DetectOptions) ([]recognition.Face, error)

	// Error injection
	DetectError error
}

// NewMockExtractor creates an available mock extractor
func NewMockExtractor(faces ...recognition.Face) *MockExtractor {
	return &MockExtractor{
		Cap:   recognition.Capability{Available: true, Backend: "mock"},
		Faces: faces,
	}
}

func (m *MockExtractor) Capability() recognition.Capability {
	return m.Cap
}

func (m *MockExtractor) Detect(ctx context.Context, image []byte, opts recognition.DetectOptions) ([]recognition.Face, error) {
	m.mu.Lock()
	call := len(m.calls)
	m.calls = append(m.calls, opts)
	m.mu.Unlock()

	if !m.Cap.Available {
		return nil, recognition.ErrUnavailable
	}
	if m.DetectFunc != nil {
		return m.DetectFunc(call, image, opts)
	}
	if m.DetectError != nil {
		return nil, m.DetectError
	}
	return m.Faces, nil
}

// Calls returns the options of every Detect call so far
func (m *MockExtractor) Calls() []recognition.DetectOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recognition.DetectOptions(nil), m.calls...)
}

// CallCount returns the number of Detect calls so far
func (m *MockExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ recognition.Extractor = (*MockExtractor)(nil)
