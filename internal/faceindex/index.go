// Package faceindex builds and caches the per-class list of known face
// embeddings the matcher compares frames against.
package faceindex

import (
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Source tags where an entry's embedding came from
const (
	SourcePrimary = "primary"
	SourceSample  = "sample"
)

// Entry is one known embedding of one student
type Entry struct {
	Embedding database.Embedding
	StudentID int64
	Name      string
	Source    string
}

// ClassIndex is the ordered set of known embeddings for one class.
// Entry order is the tie-break order and an index is never mutated after
// it has been built.
type ClassIndex struct {
	ClassID int64
	Entries []Entry
	BuiltAt time.Time
}

// Len returns the number of entries
func (ix *ClassIndex) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.Entries)
}

// IsEmpty reports whether the index has no entries
func (ix *ClassIndex) IsEmpty() bool {
	return ix.Len() == 0
}

// Dim returns the embedding length of the index, or 0 when empty
func (ix *ClassIndex) Dim() int {
	if ix.IsEmpty() {
		return 0
	}
	return len(ix.Entries[0].Embedding)
}

// StudentCount returns the number of distinct students with at least one entry
func (ix *ClassIndex) StudentCount() int {
	if ix == nil {
		return 0
	}
	seen := make(map[int64]struct{})
	for _, e := range ix.Entries {
		seen[e.StudentID] = struct{}{}
	}
	return len(seen)
}
