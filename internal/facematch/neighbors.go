package facematch

import (
	"sort"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/faceindex"
)

// hnswMaxNeighbors is the M parameter of the neighbor graph
const hnswMaxNeighbors = 16

// ConfusablePair is two different students whose known embeddings are
// close enough that one could be matched as the other
type ConfusablePair struct {
	StudentA int64   `json:"student_a"`
	NameA    string  `json:"name_a"`
	StudentB int64   `json:"student_b"`
	NameB    string  `json:"name_b"`
	Distance float64 `json:"distance"`
}

// NeighborGraph is an HNSW graph over the entries of one class index.
// Node keys are entry positions.
type NeighborGraph struct {
	graph   *hnsw.Graph[int]
	entries []faceindex.Entry
}

// NewNeighborGraph builds the graph. metric selects the graph's own
// distance; exact distances are always recomputed with distance.
func NewNeighborGraph(index *faceindex.ClassIndex, metric string) *NeighborGraph {
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.EuclideanDistance
	if metric == MetricCosine {
		g.Distance = hnsw.CosineDistance
	}

	ng := &NeighborGraph{graph: g}
	if index.IsEmpty() {
		return ng
	}
	ng.entries = index.Entries
	dim := index.Dim()
	for i, e := range index.Entries {
		if len(e.Embedding) != dim {
			continue
		}
		g.Add(hnsw.MakeNode(i, toFloat32(e.Embedding)))
	}
	return ng
}

// Len returns the number of nodes in the graph
func (ng *NeighborGraph) Len() int {
	return ng.graph.Len()
}

// ConfusablePairs lists student pairs with entries closer than tolerance,
// inspecting k approximate neighbors per entry. Each pair is reported once
// with its smallest distance, closest pairs first.
func (ng *NeighborGraph) ConfusablePairs(tolerance float64, k int, distance DistanceFunc) []ConfusablePair {
	if ng.graph.Len() < 2 {
		return nil
	}
	if k <= 0 {
		k = constants.ConfusableNeighbors
	}
	if distance == nil {
		distance = EuclideanDistance
	}

	type pairKey struct{ a, b int64 }
	best := make(map[pairKey]ConfusablePair)

	for i, e := range ng.entries {
		if len(e.Embedding) != len(ng.entries[0].Embedding) {
			continue
		}
		for _, n := range ng.graph.Search(toFloat32(e.Embedding), k+1) {
			other := ng.entries[n.Key]
			if n.Key == i || other.StudentID == e.StudentID {
				continue
			}
			d := distance(e.Embedding, other.Embedding)
			if d >= tolerance {
				continue
			}
			a, b := e, other
			if b.StudentID < a.StudentID {
				a, b = b, a
			}
			key := pairKey{a.StudentID, b.StudentID}
			if cur, ok := best[key]; ok && cur.Distance <= d {
				continue
			}
			best[key] = ConfusablePair{
				StudentA: a.StudentID, NameA: a.Name,
				StudentB: b.StudentID, NameB: b.Name,
				Distance: d,
			}
		}
	}

	pairs := make([]ConfusablePair, 0, len(best))
	for _, p := range best {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Distance != pairs[j].Distance {
			return pairs[i].Distance < pairs[j].Distance
		}
		if pairs[i].StudentA != pairs[j].StudentA {
			return pairs[i].StudentA < pairs[j].StudentA
		}
		return pairs[i].StudentB < pairs[j].StudentB
	})
	return pairs
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
