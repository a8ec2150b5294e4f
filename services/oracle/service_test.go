package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dndsage/oracle/config"
	"github.com/dndsage/oracle/corpus"
	"github.com/dndsage/oracle/services"
	"github.com/dndsage/oracle/services/prompt"
)

// stubEmbedder returns canned vectors keyed by exact text, or a fixed
// fallback vector.
type stubEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return s.fallback, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int { return len(s.fallback) }

// stubGenerator records the prompt it saw and returns a canned answer.
type stubGenerator struct {
	answer     string
	err        error
	lastPrompt string
}

func (s *stubGenerator) Generate(_ context.Context, p string) (string, error) {
	s.lastPrompt = p
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func testQueryConfig() config.QueryConfig {
	return config.QueryConfig{
		DefaultTopK:             5,
		MaxTopK:                 20,
		DefaultMaxContextTokens: 1500,
		MaxContextTokensCap:     4000,
	}
}

func testSnapshot(t *testing.T) *corpus.Snapshot {
	t.Helper()
	passages := []corpus.Passage{
		{
			ID:         "spell/fireball",
			Text:       "Fireball: a bright streak flashes from your pointing finger...",
			SourceType: corpus.SourceSpell,
			TokenCount: 120,
			Metadata:   map[string]string{"name": "Fireball", "source": "SRD 5e"},
		},
		{
			ID:         "monster/goblin",
			Text:       "Goblin: small humanoid, armed with scimitars...",
			SourceType: corpus.SourceMonster,
			TokenCount: 100,
			Metadata:   map[string]string{"name": "Goblin", "source": "SRD 5e"},
		},
		{
			ID:         "rule/resting",
			Text:       "Resting: adventurers need sleep between dungeon delves...",
			SourceType: corpus.SourceRule,
			TokenCount: 90,
			Metadata:   map[string]string{"section": "Resting", "source": "SRD 5e"},
		},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	snap, err := corpus.NewSnapshot(passages, vectors, "stub-model")
	require.NoError(t, err)
	return snap
}

func newTestService(t *testing.T, emb *stubEmbedder, gen *stubGenerator) *Service {
	t.Helper()
	svc := New(config.CorpusConfig{}, testQueryConfig(), emb, gen, zap.NewNop())
	svc.Publish(testSnapshot(t))
	return svc
}

func TestAskAnswersWithCitations(t *testing.T) {
	emb := &stubEmbedder{
		vectors:  map[string][]float32{"What is Fireball?": {0.98, 0.1, 0.05}},
		fallback: []float32{1, 0, 0},
	}
	gen := &stubGenerator{answer: "Fireball hurls a fiery explosion [1]."}
	svc := newTestService(t, emb, gen)

	result, err := svc.Ask(context.Background(), AskRequest{Question: "What is Fireball?"})
	require.NoError(t, err)

	assert.Equal(t, "Fireball hurls a fiery explosion [1].", result.Answer)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "spell/fireball", result.Citations[0].PassageID)
	assert.Equal(t, "Fireball", result.Citations[0].Name)

	// The prompt handed to the generator carries the guardrails and the
	// numbered context.
	assert.Contains(t, gen.lastPrompt, prompt.DirectiveDontKnow)
	assert.Contains(t, gen.lastPrompt, "[1] Fireball: a bright streak")
	assert.Contains(t, gen.lastPrompt, "QUESTION: What is Fireball?")
}

func TestAskTrimsQuestionWhitespace(t *testing.T) {
	emb := &stubEmbedder{fallback: []float32{1, 0, 0}}
	gen := &stubGenerator{answer: "ok"}
	svc := newTestService(t, emb, gen)

	_, err := svc.Ask(context.Background(), AskRequest{Question: "  What is Fireball?  "})
	require.NoError(t, err)
	assert.Contains(t, gen.lastPrompt, "QUESTION: What is Fireball?\n")
}

func TestAskValidation(t *testing.T) {
	floorLow := float32(-1.5)
	floorHigh := float32(1.5)

	tests := []struct {
		name    string
		req     AskRequest
		wantErr *services.DomainError
	}{
		{"empty question", AskRequest{Question: "   "}, services.ErrEmptyQuestion},
		{"negative top_k", AskRequest{Question: "q", TopK: -1}, services.ErrInvalidTopK},
		{"top_k above cap", AskRequest{Question: "q", TopK: 21}, services.ErrInvalidTopK},
		{"floor below -1", AskRequest{Question: "q", ScoreFloor: &floorLow}, services.ErrInvalidScoreFloor},
		{"floor above 1", AskRequest{Question: "q", ScoreFloor: &floorHigh}, services.ErrInvalidScoreFloor},
		{"negative budget", AskRequest{Question: "q", MaxContextTokens: -5}, services.ErrInvalidContextBudget},
		{"budget above cap", AskRequest{Question: "q", MaxContextTokens: 5000}, services.ErrInvalidContextBudget},
	}

	emb := &stubEmbedder{fallback: []float32{1, 0, 0}}
	svc := newTestService(t, emb, &stubGenerator{answer: "ok"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ask(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAskBeforeLoadRefuses(t *testing.T) {
	emb := &stubEmbedder{fallback: []float32{1, 0, 0}}
	svc := New(config.CorpusConfig{}, testQueryConfig(), emb, &stubGenerator{answer: "ok"}, zap.NewNop())

	assert.False(t, svc.Ready())
	_, err := svc.Ask(context.Background(), AskRequest{Question: "q"})
	assert.ErrorIs(t, err, services.ErrEngineNotReady)
}

func TestAskEmbeddingFailureIsExternal(t *testing.T) {
	cause := errors.New("connection refused")
	emb := &stubEmbedder{err: cause}
	svc := newTestService(t, emb, &stubGenerator{answer: "ok"})

	_, err := svc.Ask(context.Background(), AskRequest{Question: "q"})
	assert.ErrorIs(t, err, services.ErrRetrievalUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.True(t, services.IsExternalError(err))
	assert.Contains(t, err.Error(), "embedding provider unavailable")
}

func TestAskGenerationFailureIsExternal(t *testing.T) {
	emb := &stubEmbedder{fallback: []float32{1, 0, 0}}
	gen := &stubGenerator{err: errors.New("model not loaded")}
	svc := newTestService(t, emb, gen)

	_, err := svc.Ask(context.Background(), AskRequest{Question: "q"})
	assert.ErrorIs(t, err, services.ErrGenerationUnavailable)
}

func TestAskDimensionMismatchIsInternal(t *testing.T) {
	// Embedder produces 2-dim vectors against a 3-dim index.
	emb := &stubEmbedder{fallback: []float32{1, 0}}
	svc := newTestService(t, emb, &stubGenerator{answer: "ok"})

	_, err := svc.Ask(context.Background(), AskRequest{Question: "q"})
	assert.ErrorIs(t, err, services.ErrInternal)
	assert.True(t, services.IsInternalError(err))
}

func TestAskOutOfScopeStillPromptsWithDontKnowDirective(t *testing.T) {
	// Query vector far from everything, floor at 0.3: empty context, but
	// the generator is still invoked with the refusal directive.
	emb := &stubEmbedder{fallback: []float32{-1, 0, 0}}
	gen := &stubGenerator{answer: "I don't have that information in my current knowledge base."}
	svc := newTestService(t, emb, gen)

	floor := float32(0.3)
	result, err := svc.Ask(context.Background(), AskRequest{Question: "What is the capital of France?", ScoreFloor: &floor})
	require.NoError(t, err)

	assert.Empty(t, result.Citations)
	assert.Zero(t, result.ContextUsed)
	assert.Contains(t, gen.lastPrompt, prompt.DirectiveDontKnow)
	assert.Contains(t, result.Answer, "don't have that information")
}

func TestAskHonorsContextBudget(t *testing.T) {
	emb := &stubEmbedder{fallback: []float32{0.9, 0.3, 0.3}}
	gen := &stubGenerator{answer: "ok [1]"}
	svc := newTestService(t, emb, gen)

	// Budget fits only the single top passage (120 tokens).
	result, err := svc.Ask(context.Background(), AskRequest{Question: "q", MaxContextTokens: 150})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ContextUsed)
}

func TestReloadPublishesAndSwaps(t *testing.T) {
	dir := t.TempDir()
	passagesPath := filepath.Join(dir, "passages.json")
	vectorsPath := filepath.Join(dir, "vectors.json")

	writeCorpus := func(ids []string) {
		passages := make([]corpus.Passage, len(ids))
		vectors := make([][]float32, len(ids))
		for i, id := range ids {
			passages[i] = corpus.Passage{ID: id, Text: "text " + id, SourceType: corpus.SourceRule, TokenCount: 10}
			vectors[i] = []float32{1, 0}
		}
		pData, err := json.Marshal(passages)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(passagesPath, pData, 0o644))
		vData, err := json.Marshal(corpus.VectorsFile{Model: "m", Embeddings: vectors})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(vectorsPath, vData, 0o644))
	}

	emb := &stubEmbedder{fallback: []float32{1, 0}}
	svc := New(config.CorpusConfig{PassagesPath: passagesPath, VectorsPath: vectorsPath},
		testQueryConfig(), emb, &stubGenerator{answer: "ok"}, zap.NewNop())

	writeCorpus([]string{"a"})
	snap, err := svc.Reload()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Store.Len())
	assert.True(t, svc.Ready())

	old := svc.Snapshot()
	writeCorpus([]string{"a", "b"})
	snap, err = svc.Reload()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Store.Len())
	assert.NotSame(t, old, svc.Snapshot())
}

func TestReloadFailureKeepsOldSnapshot(t *testing.T) {
	dir := t.TempDir()
	passagesPath := filepath.Join(dir, "passages.json")
	vectorsPath := filepath.Join(dir, "vectors.json")

	pData, err := json.Marshal([]corpus.Passage{{ID: "a", Text: "t", SourceType: corpus.SourceRule, TokenCount: 5}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(passagesPath, pData, 0o644))
	vData, err := json.Marshal(corpus.VectorsFile{Embeddings: [][]float32{{1, 0}}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(vectorsPath, vData, 0o644))

	emb := &stubEmbedder{fallback: []float32{1, 0}}
	svc := New(config.CorpusConfig{PassagesPath: passagesPath, VectorsPath: vectorsPath},
		testQueryConfig(), emb, &stubGenerator{answer: "ok"}, zap.NewNop())

	_, err = svc.Reload()
	require.NoError(t, err)
	old := svc.Snapshot()

	// Corrupt the vectors file: reload must fail and keep the old snapshot.
	require.NoError(t, os.WriteFile(vectorsPath, []byte("{not json"), 0o644))
	_, err = svc.Reload()
	require.Error(t, err)
	assert.Same(t, old, svc.Snapshot())
}

func TestAskIdempotentForIdenticalInputs(t *testing.T) {
	emb := &stubEmbedder{fallback: []float32{0.9, 0.2, 0.1}}
	gen := &stubGenerator{answer: "answer citing [1] and [2]"}
	svc := newTestService(t, emb, gen)

	req := AskRequest{Question: "q", TopK: 3}
	first, err := svc.Ask(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Ask(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.Contains(gen.lastPrompt, "[1] "))
}
