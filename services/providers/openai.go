package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/dndsage/oracle/config"
)

// OpenAIProvider implements Embedder and Generator over the OpenAI API.
// Pointing BaseURL at an OpenAI-compatible server (Ollama, vLLM) swaps the
// underlying models without touching the engine.
type OpenAIProvider struct {
	client         *openai.Client
	embeddingModel string
	chatModel      string
	temperature    float32
	maxRetries     int
	retryDelay     time.Duration
	logger         *zap.Logger

	// mu guards dimension: Embed infers it lazily on the first response
	// and EmbedBatch runs Embed calls concurrently.
	mu        sync.Mutex
	dimension int
}

// embedBatchConcurrency bounds parallel embedding calls during ingestion.
const embedBatchConcurrency = 10

// NewOpenAI creates a provider from configuration.
func NewOpenAI(cfg config.OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	dim := cfg.EmbeddingDimensions
	if dim == 0 {
		dim = defaultDimension(cfg.EmbeddingModel)
	}

	return &OpenAIProvider{
		client:         openai.NewClientWithConfig(cc),
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		temperature:    float32(cfg.Temperature),
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
		dimension:      dim,
		logger:         logger,
	}
}

// defaultDimension maps known embedding models to their output dimension.
func defaultDimension(model string) int {
	switch {
	case strings.Contains(model, "3-large"):
		return 3072
	case strings.Contains(model, "ada-002"), strings.Contains(model, "3-small"):
		return 1536
	case strings.Contains(model, "MiniLM"), strings.Contains(model, "minilm"):
		return 384
	default:
		return 0
	}
}

// withRetry runs fn up to maxRetries+1 times, backing off linearly between
// attempts. Context cancellation stops the loop.
func (p *OpenAIProvider) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Debug("retrying provider call",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.retryDelay * time.Duration(attempt)):
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// Embed generates a single L2-normalized embedding.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	var resp openai.EmbeddingResponse
	err := p.withRetry(ctx, "embeddings", func() error {
		var err error
		resp, err = p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(p.embeddingModel),
			Input: []string{text},
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	copy(vec, resp.Data[0].Embedding)
	l2normalize(vec)

	p.mu.Lock()
	if p.dimension == 0 {
		p.dimension = len(vec)
	}
	p.mu.Unlock()
	return vec, nil
}

// EmbedBatch embeds texts with bounded concurrency, preserving input
// order. The first error aborts the batch.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, embedBatchConcurrency)

	for i := range texts {
		mu.Lock()
		failed := firstErr != nil
		mu.Unlock()
		if failed {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			vec, err := p.Embed(ctx, texts[idx])
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("embedding text %d: %w", idx, err)
				}
				mu.Unlock()
				return
			}
			vectors[idx] = vec
		}(i)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}

// Dimension returns the embedding dimension, or 0 before the first call
// when the model is unknown.
func (p *OpenAIProvider) Dimension() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dimension
}

// Generate sends the prompt as a single user message and returns the
// completion text.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	var resp openai.ChatCompletionResponse
	err := p.withRetry(ctx, "chat_completion", func() error {
		var err error
		resp, err = p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       p.chatModel,
			Temperature: p.temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion response contained no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// l2normalize scales v to unit length in place; cosine similarity over
// normalized vectors reduces to a dot product.
func l2normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
