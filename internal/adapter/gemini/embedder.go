package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// The embedding API caps one batch call at 100 inputs.
const maxBatchSize = 100

// Embedder maps texts to fixed-dimension vectors with a Gemini embedding
// model. For a fixed model configuration the mapping is deterministic, which
// the index relies on.
type Embedder struct {
	client *genai.Client
	model  string
}

func NewEmbedder(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Embedder, error) {
	clientOpts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model}, nil
}

// EmbedBatch returns one vector per input text, in input order. Large inputs
// are split into API-sized batches internally.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	slog.DebugContext(ctx, "embedding batch", "model", e.model, "count", len(texts))
	em := e.client.EmbeddingModel(e.model)

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		b := em.NewBatch()
		for _, t := range texts[start:end] {
			b = b.AddContent(genai.Text(t))
		}

		res, err := em.BatchEmbedContents(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("embed batch: expected %d embeddings, got %d", end-start, len(res.Embeddings))
		}

		for i, emb := range res.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, fmt.Errorf("embed batch: empty embedding for input %d", start+i)
			}
			vectors = append(vectors, emb.Values)
		}
	}
	return vectors, nil
}

// Embed is the single-text convenience used on the query path.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}
