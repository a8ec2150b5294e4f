package etl

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dndsage/oracle/corpus"
)

type fakeEmbedder struct {
	dim   int
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	vec := make([]float32, f.dim)
	vec[0] = float32(len(text)%7 + 1)
	vec[1] = 1
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func writeRaw(t *testing.T, dir, name string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestPipelineRun(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()

	writeRaw(t, rawDir, "spells.json", []Spell{testSpell()})
	writeRaw(t, rawDir, "monsters.json", []Monster{{
		Index: "goblin", Name: "Goblin", Size: "Small", Type: "humanoid",
		HitPoints: 7, ChallengeRating: 0.25, URL: "/api/monsters/goblin",
	}})
	writeRaw(t, rawDir, "rules.json", []RuleSection{{
		Index: "resting", Name: "Resting", Desc: "Adventurers need rest.", URL: "/api/rule-sections/resting",
	}})

	opts := Options{
		RawDir:       rawDir,
		PassagesPath: filepath.Join(outDir, "passages.json"),
		VectorsPath:  filepath.Join(outDir, "vectors.json"),
		Model:        "test-model",
	}
	pipeline := NewPipeline(NewChunker(newWordCodec(), 512, 50), &fakeEmbedder{dim: 4}, zap.NewNop())

	stats, err := pipeline.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Spells)
	assert.Equal(t, 1, stats.Monsters)
	assert.Equal(t, 1, stats.RuleSections)
	assert.Equal(t, 3, stats.Passages)
	assert.Equal(t, 4, stats.Dimension)

	// The engine must be able to load what the pipeline wrote.
	snap, err := corpus.Load(opts.PassagesPath, opts.VectorsPath)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Store.Len())
	assert.Equal(t, 4, snap.Index.Dimension())
	assert.Equal(t, "test-model", snap.Model)
	assert.Equal(t, "spell/fireball", snap.Store.At(0).ID)
}

func TestPipelineSkipsMissingRawFiles(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()

	writeRaw(t, rawDir, "spells.json", []Spell{testSpell()})

	pipeline := NewPipeline(NewChunker(newWordCodec(), 512, 50), &fakeEmbedder{dim: 3}, zap.NewNop())
	stats, err := pipeline.Run(context.Background(), Options{
		RawDir:       rawDir,
		PassagesPath: filepath.Join(outDir, "passages.json"),
		VectorsPath:  filepath.Join(outDir, "vectors.json"),
		Model:        "test-model",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Passages)
	assert.Equal(t, 0, stats.Monsters)
}

func TestPipelineNoRawData(t *testing.T) {
	pipeline := NewPipeline(NewChunker(newWordCodec(), 512, 50), &fakeEmbedder{dim: 3}, zap.NewNop())

	_, err := pipeline.Run(context.Background(), Options{
		RawDir:       t.TempDir(),
		PassagesPath: filepath.Join(t.TempDir(), "passages.json"),
		VectorsPath:  filepath.Join(t.TempDir(), "vectors.json"),
	})

	assert.Error(t, err)
}

func TestPipelineCorruptRawFile(t *testing.T) {
	rawDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, "spells.json"), []byte("{not json"), 0o644))

	pipeline := NewPipeline(NewChunker(newWordCodec(), 512, 50), &fakeEmbedder{dim: 3}, zap.NewNop())
	_, err := pipeline.Run(context.Background(), Options{
		RawDir:       rawDir,
		PassagesPath: filepath.Join(t.TempDir(), "passages.json"),
		VectorsPath:  filepath.Join(t.TempDir(), "vectors.json"),
	})

	assert.Error(t, err)
}
