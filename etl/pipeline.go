package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dndsage/oracle/corpus"
	"github.com/dndsage/oracle/services/providers"
)

// Options configures one pipeline run.
type Options struct {
	RawDir       string
	PassagesPath string
	VectorsPath  string
	Model        string
}

// Stats summarizes what a pipeline run produced.
type Stats struct {
	Spells       int
	Monsters     int
	RuleSections int
	Passages     int
	Dimension    int
}

// Pipeline turns raw SRD dumps into the passage and vector files the
// query engine loads.
type Pipeline struct {
	chunker  *Chunker
	embedder providers.Embedder
	logger   *zap.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(chunker *Chunker, embedder providers.Embedder, logger *zap.Logger) *Pipeline {
	return &Pipeline{chunker: chunker, embedder: embedder, logger: logger}
}

// Run chunks every raw file present, embeds the passages, validates the
// result as a loadable snapshot, and writes both output files. Missing
// raw files are skipped; producing zero passages is an error.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Stats, error) {
	var (
		passages []corpus.Passage
		stats    Stats
	)

	var spells []Spell
	if ok, err := readRawFile(filepath.Join(opts.RawDir, "spells.json"), &spells); err != nil {
		return nil, err
	} else if ok {
		for _, s := range spells {
			passages = append(passages, p.chunker.ChunkSpell(s))
		}
		stats.Spells = len(spells)
		p.logger.Info("chunked spells", zap.Int("count", len(spells)))
	}

	var monsters []Monster
	if ok, err := readRawFile(filepath.Join(opts.RawDir, "monsters.json"), &monsters); err != nil {
		return nil, err
	} else if ok {
		for _, m := range monsters {
			passages = append(passages, p.chunker.ChunkMonster(m))
		}
		stats.Monsters = len(monsters)
		p.logger.Info("chunked monsters", zap.Int("count", len(monsters)))
	}

	var rules []RuleSection
	if ok, err := readRawFile(filepath.Join(opts.RawDir, "rules.json"), &rules); err != nil {
		return nil, err
	} else if ok {
		for _, r := range rules {
			passages = append(passages, p.chunker.ChunkRuleSection(r)...)
		}
		stats.RuleSections = len(rules)
		p.logger.Info("chunked rule sections", zap.Int("count", len(rules)))
	}

	if len(passages) == 0 {
		return nil, fmt.Errorf("no raw data found under %s", opts.RawDir)
	}
	stats.Passages = len(passages)

	texts := make([]string, len(passages))
	for i := range passages {
		texts[i] = passages[i].Text
	}

	p.logger.Info("embedding passages", zap.Int("count", len(texts)))
	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding passages: %w", err)
	}
	stats.Dimension = len(embeddings[0])

	// Validate the exact artifacts the server will load before writing
	// anything to disk.
	if _, err := corpus.NewSnapshot(passages, embeddings, opts.Model); err != nil {
		return nil, fmt.Errorf("validating pipeline output: %w", err)
	}

	if err := writeJSONAtomic(opts.PassagesPath, passages); err != nil {
		return nil, err
	}
	if err := writeJSONAtomic(opts.VectorsPath, corpus.VectorsFile{
		Model:      opts.Model,
		Embeddings: embeddings,
	}); err != nil {
		return nil, err
	}

	p.logger.Info("pipeline complete",
		zap.Int("passages", stats.Passages),
		zap.Int("dimension", stats.Dimension),
		zap.String("passages_path", opts.PassagesPath),
		zap.String("vectors_path", opts.VectorsPath))
	return &stats, nil
}

func readRawFile(path string, out interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}

// writeJSONAtomic writes to a temp file in the target directory and
// renames it into place so a crash never leaves a half-written artifact.
func writeJSONAtomic(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
