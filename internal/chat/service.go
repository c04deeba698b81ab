// Package chat answers natural-language questions grounded in retrieved
// document context: embed the query, search the index, assemble context,
// prompt the model with strict grounding instructions, and record the
// exchange in conversation memory.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"docqa/internal/memory"
	"docqa/internal/vector"
)

// NotFoundAnswer is the fixed sentinel returned when no grounded answer is
// available. The model is instructed to emit exactly this text for
// out-of-context questions.
const NotFoundAnswer = "Not found in the documents."

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IndexLoader yields a read-only snapshot of the persisted index.
type IndexLoader interface {
	Load() (*vector.Index, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Service struct {
	embedder      Embedder
	loader        IndexLoader
	generator     Generator
	memory        memory.Store
	logger        *QueryLogger
	topK          int
	historyWindow int
}

func NewService(e Embedder, l IndexLoader, g Generator, mem memory.Store, ql *QueryLogger, topK, historyWindow int) *Service {
	return &Service{
		embedder:      e,
		loader:        l,
		generator:     g,
		memory:        mem,
		logger:        ql,
		topK:          topK,
		historyWindow: historyWindow,
	}
}

// Answer returns the grounded answer text and the de-duplicated set of
// source document names backing it. On a generation failure the error
// propagates and conversation memory is left untouched.
func (s *Service) Answer(ctx context.Context, sessionID, query string) (string, []string, error) {
	start := time.Now()
	numChunks := 0
	var retErr error

	defer func() {
		if s.logger != nil && retErr == nil {
			s.logger.Log(QueryLogEntry{
				Query:     query,
				NumChunks: numChunks,
				Duration:  time.Since(start),
				SessionID: sessionID,
			})
		}
	}()

	ix, err := s.loader.Load()
	if errors.Is(err, vector.ErrIndexNotFound) {
		// Nothing ingested yet: answer with the sentinel, no model call.
		slog.InfoContext(ctx, "query against empty corpus", "session_id", sessionID)
		return NotFoundAnswer, []string{}, nil
	}
	if err != nil {
		retErr = err
		return "", nil, err
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		retErr = err
		return "", nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := ix.Search(queryVector, s.topK)
	if err != nil {
		retErr = err
		return "", nil, err
	}
	numChunks = len(results)

	contextBlock, sources := assembleContext(results)
	if strings.TrimSpace(contextBlock) == "" {
		return NotFoundAnswer, []string{}, nil
	}

	history := s.memory.Recent(sessionID, s.historyWindow)
	prompt := buildPrompt(query, contextBlock, history)

	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		retErr = err
		return "", nil, fmt.Errorf("generate answer: %w", err)
	}

	s.memory.Append(sessionID, memory.RoleUser, query)
	s.memory.Append(sessionID, memory.RoleAssistant, answer)

	return answer, sources, nil
}

// assembleContext renders retrieved chunks in retrieval order (closest
// first) and collects the distinct source document names, sorted so the set
// is order-stable for callers and tests.
func assembleContext(results []vector.Result) (string, []string) {
	blocks := make([]string, 0, len(results))
	seen := make(map[string]struct{})

	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Document: %s | Page: %d\nContent:\n%s", r.Meta.Document, r.Meta.Page, r.Meta.Text))
		seen[r.Meta.Document] = struct{}{}
	}

	sources := make([]string, 0, len(seen))
	for doc := range seen {
		sources = append(sources, doc)
	}
	sort.Strings(sources)

	return strings.Join(blocks, "\n"), sources
}

func buildPrompt(query, contextBlock string, history []memory.Turn) string {
	var hb strings.Builder
	for _, turn := range history {
		hb.WriteString(turn.Role)
		hb.WriteString(": ")
		hb.WriteString(turn.Content)
		hb.WriteString("\n")
	}

	return fmt.Sprintf(`You are a document-based Question Answering assistant.

Instructions:
- Use ONLY the provided context.
- Do NOT use prior knowledge.
- Do NOT infer or assume missing details.
- If the answer is not explicitly present, respond exactly with:
  "%s"

Conversation History:
%s
Retrieved Context:
%s

User Question:
%s
`, NotFoundAnswer, hb.String(), contextBlock, query)
}
