package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dndsage/oracle/config"
	"github.com/dndsage/oracle/services/oracle"
	"github.com/dndsage/oracle/services/providers"
)

// Dependencies holds the application's wired components.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger
	Engine *oracle.Service
}

// NewDependencies builds the provider, the query engine, and loads the
// corpus. Startup fails if the initial corpus load does, so the server
// never comes up serving an empty index.
func NewDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	provider := providers.NewOpenAI(cfg.Providers.OpenAI, logger)
	engine := oracle.New(cfg.Corpus, cfg.Query, provider, provider, logger)

	snap, err := engine.Reload()
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	logger.Info("query engine ready",
		zap.Int("passages", snap.Store.Len()),
		zap.Int("dimension", snap.Index.Dimension()))

	return &Dependencies{
		Config: cfg,
		Logger: logger,
		Engine: engine,
	}, nil
}
