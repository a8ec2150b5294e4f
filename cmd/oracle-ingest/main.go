package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/dndsage/oracle/app"
	"github.com/dndsage/oracle/config"
	"github.com/dndsage/oracle/etl"
	"github.com/dndsage/oracle/internal/tokenizer"
	"github.com/dndsage/oracle/services/providers"
)

func main() {
	rawDir := flag.String("raw", "data/raw", "directory with raw SRD dumps (spells.json, monsters.json, rules.json)")
	maxTokens := flag.Int("max-tokens", 512, "token limit per rule chunk")
	overlap := flag.Int("overlap", 50, "token overlap between adjacent rule chunks")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	logger, err := app.NewLogger(cfg.Observability)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	codec, err := tokenizer.New()
	if err != nil {
		logger.Fatal("initializing tokenizer", zap.Error(err))
	}

	provider := providers.NewOpenAI(cfg.Providers.OpenAI, logger)
	pipeline := etl.NewPipeline(etl.NewChunker(codec, *maxTokens, *overlap), provider, logger)

	stats, err := pipeline.Run(context.Background(), etl.Options{
		RawDir:       *rawDir,
		PassagesPath: cfg.Corpus.PassagesPath,
		VectorsPath:  cfg.Corpus.VectorsPath,
		Model:        cfg.Providers.OpenAI.EmbeddingModel,
	})
	if err != nil {
		logger.Fatal("pipeline failed", zap.Error(err))
	}

	logger.Info("ingestion complete",
		zap.Int("spells", stats.Spells),
		zap.Int("monsters", stats.Monsters),
		zap.Int("rule_sections", stats.RuleSections),
		zap.Int("passages", stats.Passages),
		zap.Int("dimension", stats.Dimension))
}
