package oracle

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dndsage/oracle/config"
	"github.com/dndsage/oracle/corpus"
	"github.com/dndsage/oracle/services"
	"github.com/dndsage/oracle/services/answer"
	"github.com/dndsage/oracle/services/assembler"
	"github.com/dndsage/oracle/services/prompt"
	"github.com/dndsage/oracle/services/providers"
	"github.com/dndsage/oracle/services/search"
)

// AskRequest is a single question against the corpus. Zero values for TopK
// and MaxContextTokens mean "use the configured default".
type AskRequest struct {
	Question         string
	TopK             int
	ScoreFloor       *float32
	MaxContextTokens int
}

// Service runs the query pipeline: embed the question, rank passages,
// assemble a bounded context, build the guardrail prompt, generate, and
// package the answer with citations.
//
// The corpus snapshot is held behind an atomic pointer. Queries are
// stateless reads over whichever snapshot they observe at start, so
// arbitrary concurrent callers need no locks; Reload builds a fresh
// snapshot and swaps the pointer, leaving in-flight queries on the old
// one.
type Service struct {
	snapshot atomic.Pointer[corpus.Snapshot]

	embedder  providers.Embedder
	generator providers.Generator

	searcher  *search.Service
	assembler *assembler.Service
	prompts   *prompt.Service
	answers   *answer.Service

	corpusCfg config.CorpusConfig
	queryCfg  config.QueryConfig
	logger    *zap.Logger
}

// New creates the oracle service. The snapshot is empty until Reload or
// Publish runs; Ask refuses to serve before then.
func New(corpusCfg config.CorpusConfig, queryCfg config.QueryConfig, embedder providers.Embedder, generator providers.Generator, logger *zap.Logger) *Service {
	return &Service{
		embedder:  embedder,
		generator: generator,
		searcher:  search.New(logger),
		assembler: assembler.New(logger),
		prompts:   prompt.New(),
		answers:   answer.New(logger),
		corpusCfg: corpusCfg,
		queryCfg:  queryCfg,
		logger:    logger,
	}
}

// Reload builds a new snapshot from the configured corpus files and
// atomically publishes it. On failure the previous snapshot, if any,
// stays in service.
func (s *Service) Reload() (*corpus.Snapshot, error) {
	snap, err := corpus.Load(s.corpusCfg.PassagesPath, s.corpusCfg.VectorsPath)
	if err != nil {
		return nil, err
	}
	s.Publish(snap)
	s.logger.Info("corpus snapshot published",
		zap.Int("passages", snap.Store.Len()),
		zap.Int("dimension", snap.Index.Dimension()),
		zap.String("model", snap.Model))
	return snap, nil
}

// Publish swaps in a fully built snapshot. Only complete snapshots may be
// published; a partially loaded index must never become visible.
func (s *Service) Publish(snap *corpus.Snapshot) {
	s.snapshot.Store(snap)
}

// Snapshot returns the currently published snapshot, or nil before the
// first successful load.
func (s *Service) Snapshot() *corpus.Snapshot {
	return s.snapshot.Load()
}

// Ready reports whether a snapshot has been published.
func (s *Service) Ready() bool {
	return s.snapshot.Load() != nil
}

// Ask answers a question grounded in the corpus.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*answer.Result, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, services.ErrEmptyQuestion
	}

	snap := s.snapshot.Load()
	if snap == nil {
		return nil, services.ErrEngineNotReady
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.queryCfg.DefaultTopK
	}
	if topK < 1 || topK > s.queryCfg.MaxTopK {
		return nil, services.ErrInvalidTopK
	}

	if req.ScoreFloor != nil && (*req.ScoreFloor < -1 || *req.ScoreFloor > 1) {
		return nil, services.ErrInvalidScoreFloor
	}

	budget := req.MaxContextTokens
	if budget == 0 {
		budget = s.queryCfg.DefaultMaxContextTokens
	}
	if budget < 1 || budget > s.queryCfg.MaxContextTokensCap {
		return nil, services.ErrInvalidContextBudget
	}

	requestID := uuid.NewString()
	log := s.logger.With(zap.String("request_id", requestID))

	log.Debug("embedding question", zap.Int("top_k", topK), zap.Int("max_context_tokens", budget))
	queryVec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		log.Warn("embedding provider failed", zap.Error(err))
		return nil, services.Wrap(services.ErrRetrievalUnavailable, err)
	}

	ranked, err := s.searcher.Search(snap, queryVec, topK, req.ScoreFloor)
	if err != nil {
		// A dimension mismatch here means the configured embedding model
		// does not match the one the corpus was built with.
		log.Error("similarity search failed", zap.Error(err))
		return nil, services.Wrap(services.ErrInternal, err)
	}

	block := s.assembler.Build(ranked, budget)
	if block.Empty() {
		log.Info("no relevant context found", zap.Int("ranked", len(ranked)))
	}

	promptText := s.prompts.Build(question, block)

	log.Debug("invoking generation provider", zap.Int("context_tokens", block.TokenCount))
	raw, err := s.generator.Generate(ctx, promptText)
	if err != nil {
		log.Warn("generation provider failed", zap.Error(err))
		return nil, services.Wrap(services.ErrGenerationUnavailable, err)
	}

	result := s.answers.Package(raw, block)

	log.Info("question answered",
		zap.Int("ranked", len(ranked)),
		zap.Int("context_passages", result.ContextUsed),
		zap.Int("context_tokens", block.TokenCount),
		zap.Int("citations", len(result.Citations)))

	return result, nil
}
