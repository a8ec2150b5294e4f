package providers

import "context"

// Embedder turns text into a fixed-dimension vector. The engine treats the
// model behind it as an opaque black box: any implementation satisfying
// the interface can back retrieval.
type Embedder interface {
	// Embed returns the embedding of a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds many texts, preserving order. Used by the ingest
	// pipeline, not the query path.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector dimension this embedder produces, or 0
	// if unknown until the first call.
	Dimension() int
}

// Generator produces a text completion for a prompt. Like Embedder, it is
// an opaque collaborator; timeouts and retries live behind the interface.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
