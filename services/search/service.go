package search

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/dndsage/oracle/corpus"
	"go.uber.org/zap"
)

// RankedPassage pairs a passage with its similarity score against a query
// vector. Index is the passage's position in the corpus, kept for
// deterministic tie-breaking.
type RankedPassage struct {
	Passage *corpus.Passage
	Index   int
	Score   float32
}

// DimensionError reports a query vector whose dimension does not match the
// index.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("query vector dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// Service ranks indexed passages against query vectors. It holds no state
// of its own; every call reads an immutable snapshot, so concurrent
// queries need no coordination.
type Service struct {
	logger *zap.Logger
}

// New creates a new search service.
func New(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Search computes the cosine similarity between query and every indexed
// embedding and returns at most topK passages, highest score first. Exact
// score ties rank the lower corpus index first, so identical inputs always
// produce identical output. When floor is non-nil, passages scoring
// strictly below it are excluded even if fewer than topK remain; an empty
// result is valid and means nothing relevant was found.
//
// The scan is exhaustive, O(N*D) per query. That is intentional for a
// corpus of a few thousand passages; top-K selection uses a bounded heap
// rather than sorting the full ranking.
func (s *Service) Search(snap *corpus.Snapshot, query []float32, topK int, floor *float32) ([]RankedPassage, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}
	if d := snap.Index.Dimension(); len(query) != d {
		return nil, &DimensionError{Want: d, Got: len(query)}
	}

	queryNorm := norm(query)

	h := make(candidateHeap, 0, topK)
	for i := 0; i < snap.Index.Len(); i++ {
		score := cosine(query, queryNorm, snap.Index.At(i))
		if floor != nil && score < *floor {
			continue
		}

		cand := RankedPassage{Passage: snap.Store.At(i), Index: i, Score: score}
		if h.Len() < topK {
			heap.Push(&h, cand)
			continue
		}
		if beats(cand, h[0]) {
			h[0] = cand
			heap.Fix(&h, 0)
		}
	}

	// Pop worst-first, then reverse into descending order.
	results := make([]RankedPassage, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(&h).(RankedPassage)
	}

	s.logger.Debug("similarity search complete",
		zap.Int("scanned", snap.Index.Len()),
		zap.Int("returned", len(results)),
		zap.Int("top_k", topK))

	return results, nil
}

// cosine returns dot(q, v) / (||q|| * ||v||). Vectors with zero norm are
// defined to have similarity 0 with any query, so a degenerate embedding
// never fails the whole search.
func cosine(q []float32, qNorm float64, v []float32) float32 {
	if qNorm == 0 {
		return 0
	}
	var dot, vSq float64
	for i := range q {
		dot += float64(q[i]) * float64(v[i])
		vSq += float64(v[i]) * float64(v[i])
	}
	if vSq == 0 {
		return 0
	}
	return float32(dot / (qNorm * math.Sqrt(vSq)))
}

func norm(v []float32) float64 {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	return math.Sqrt(sq)
}

// beats reports whether a outranks b: higher score wins, equal scores go
// to the lower corpus index.
func beats(a, b RankedPassage) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

// candidateHeap is a min-heap over ranking order: the root is the weakest
// candidate currently retained.
type candidateHeap []RankedPassage

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return beats(h[j], h[i]) }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(RankedPassage)) }

func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
