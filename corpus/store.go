package corpus

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"
)

// Store is an immutable, ordered collection of passages. Indices 0..N-1 are
// positionally aligned with the VectorIndex built alongside it.
type Store struct {
	passages []Passage
}

// Len returns the number of passages.
func (s *Store) Len() int { return len(s.passages) }

// At returns the passage at index i.
func (s *Store) At(i int) *Passage { return &s.passages[i] }

// BySourceType returns the citation metadata of every passage with the
// given source type, in corpus order.
func (s *Store) BySourceType(t SourceType) []*Passage {
	var out []*Passage
	for i := range s.passages {
		if s.passages[i].SourceType == t {
			out = append(out, &s.passages[i])
		}
	}
	return out
}

// VectorIndex is the immutable array of passage embeddings, positionally
// aligned with the Store. vectors[i] embeds store.At(i).
type VectorIndex struct {
	vectors   [][]float32
	dimension int
}

// Len returns the number of indexed vectors.
func (v *VectorIndex) Len() int { return len(v.vectors) }

// Dimension returns the embedding dimension D shared by all vectors.
func (v *VectorIndex) Dimension() int { return v.dimension }

// At returns the embedding at index i.
func (v *VectorIndex) At(i int) []float32 { return v.vectors[i] }

// Snapshot pairs a Store with its VectorIndex. A snapshot is built once by
// Load and never mutated; hot reload builds a new snapshot and swaps the
// pointer seen by new queries.
type Snapshot struct {
	Store    *Store
	Index    *VectorIndex
	Model    string
	LoadedAt time.Time
}

// VectorsFile is the on-disk shape of the embedding record set, parallel to
// the passage file by position.
type VectorsFile struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Load reads the passage and vector files, validates the parallel-array
// contract, and returns an immutable snapshot. Load is all-or-nothing: any
// invalid record fails the whole load and nothing is published.
func Load(passagesPath, vectorsPath string) (*Snapshot, error) {
	passages, err := readPassages(passagesPath)
	if err != nil {
		return nil, err
	}

	vf, err := readVectors(vectorsPath)
	if err != nil {
		return nil, err
	}

	return NewSnapshot(passages, vf.Embeddings, vf.Model)
}

// NewSnapshot validates passages and their positionally aligned embeddings
// and builds an immutable snapshot. The first embedding fixes the expected
// dimension for the whole index.
func NewSnapshot(passages []Passage, embeddings [][]float32, model string) (*Snapshot, error) {
	if len(passages) == 0 {
		return nil, ErrEmptyCorpus
	}
	if len(passages) != len(embeddings) {
		return nil, fmt.Errorf("corpus/vector length mismatch: %d passages, %d embeddings",
			len(passages), len(embeddings))
	}

	seen := make(map[string]int, len(passages))
	for i := range passages {
		if err := validatePassage(&passages[i], i, seen); err != nil {
			return nil, err
		}
	}

	dim := len(embeddings[0])
	if dim == 0 {
		return nil, &DimensionMismatchError{Index: 0, Want: 1, Got: 0}
	}
	for i, vec := range embeddings {
		if len(vec) != dim {
			return nil, &DimensionMismatchError{Index: i, Want: dim, Got: len(vec)}
		}
		for _, x := range vec {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return nil, &CorruptRecordError{Index: i, Reason: "embedding contains non-finite value"}
			}
		}
	}

	return &Snapshot{
		Store:    &Store{passages: passages},
		Index:    &VectorIndex{vectors: embeddings, dimension: dim},
		Model:    model,
		LoadedAt: time.Now().UTC(),
	}, nil
}

func readPassages(path string) ([]Passage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading passage file: %w", err)
	}
	var passages []Passage
	if err := json.Unmarshal(data, &passages); err != nil {
		return nil, fmt.Errorf("decoding passage file: %w", err)
	}
	return passages, nil
}

func readVectors(path string) (*VectorsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vector file: %w", err)
	}
	var vf VectorsFile
	if err := json.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("decoding vector file: %w", err)
	}
	return &vf, nil
}

func validatePassage(p *Passage, i int, seen map[string]int) error {
	if p.ID == "" {
		return &CorruptRecordError{Index: i, Reason: "missing id"}
	}
	if prev, dup := seen[p.ID]; dup {
		return &CorruptRecordError{Index: i, Reason: fmt.Sprintf("duplicate id %q (first seen at record %d)", p.ID, prev)}
	}
	seen[p.ID] = i
	if p.Text == "" {
		return &CorruptRecordError{Index: i, Reason: "empty text"}
	}
	if p.SourceType == "" {
		return &CorruptRecordError{Index: i, Reason: "missing source_type"}
	}
	if p.TokenCount <= 0 {
		return &CorruptRecordError{Index: i, Reason: "token_count must be positive"}
	}
	return nil
}
