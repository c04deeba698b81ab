package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Generator produces answer text from a fully assembled prompt. Temperature
// is fixed at construction and kept low to minimize answer variance.
type Generator struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

func NewGenerator(ctx context.Context, apiKey, model string, temperature float32, opts ...option.ClientOption) (*Generator, error) {
	clientOpts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, err
	}

	m := client.GenerativeModel(model)
	m.SetTemperature(temperature)

	return &Generator{client: client, model: m, name: model}, nil
}

// Generate makes a single completion call and returns the response text
// trimmed of surrounding whitespace.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	slog.DebugContext(ctx, "generating answer", "model", g.name, "prompt_length", len(prompt))

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("generation returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}

	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", errors.New("generation returned no text")
	}
	return answer, nil
}

func (g *Generator) Close() error {
	return g.client.Close()
}
