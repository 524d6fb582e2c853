// Package facematch matches faces detected in a frame against a class index.
package facematch

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Distance metric names accepted in DISTANCE_METRIC
const (
	MetricEuclidean = "euclidean"
	MetricCosine    = "cosine"
)

// DistanceFunc returns a non-negative distance, lower means more similar.
// Embeddings of different lengths are infinitely far apart.
type DistanceFunc func(a, b database.Embedding) float64

// EuclideanDistance is the L2 distance used by dlib-style encodings
func EuclideanDistance(a, b database.Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	return floats.Distance(a, b, 2)
}

// CosineDistance returns 1 - cosine similarity, in [0, 2]
func CosineDistance(a, b database.Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 2.0 // Maximum distance for zero vectors
	}

	similarity := floats.Dot(a, b) / (normA * normB)
	// Clamp to [-1, 1] to handle floating point errors
	similarity = max(-1, min(1, similarity))
	return 1 - similarity
}

// MetricByName resolves a configured metric name; empty means Euclidean.
func MetricByName(name string) (DistanceFunc, error) {
	switch name {
	case MetricEuclidean, "":
		return EuclideanDistance, nil
	case MetricCosine:
		return CosineDistance, nil
	}
	return nil, fmt.Errorf("unknown distance metric %q", name)
}
