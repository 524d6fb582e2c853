// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// DefaultMatchTolerance is the maximum embedding distance accepted as a match.
	// The boundary is exclusive: a distance equal to the tolerance is unknown.
	DefaultMatchTolerance = 0.4

	// UnknownFaceName is the display name for faces without a match
	UnknownFaceName = "Unknown"

	// ConfusableNeighbors is the number of HNSW neighbors inspected per entry
	// when looking for confusable students
	ConfusableNeighbors = 5
)

// Index cache constants
const (
	// DefaultFreshnessWindow is how long a built class index is served as-is
	DefaultFreshnessWindow = 30 * time.Second
)

// Ledger constants
const (
	// DefaultExcuseDailyLimit is the number of manual excuses a teacher may
	// record per calendar day
	DefaultExcuseDailyLimit = 5

	// MaxTxRetries is how many times a ledger transaction is retried after a
	// unique or serialization conflict
	MaxTxRetries = 3
)

// Image processing constants
const (
	// MaxImageSide is the longest side (px) a frame or photo is scaled down to
	MaxImageSide = 1600

	// UpsampleFallback is the HOG upsample count used by the second detection pass
	UpsampleFallback = 2
)

// Processing constants
const (
	// DefaultEncodingBackfillInterval is how often serve fills missing primary encodings
	DefaultEncodingBackfillInterval = 10 * time.Minute
)
