package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docqa/internal/memory"
	"docqa/internal/vector"
)

// --- Mocks ---

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) Load() (*vector.Index, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vector.Index), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func testIndex(t *testing.T) *vector.Index {
	t.Helper()
	ix, err := vector.Build(
		[][]float32{
			{1, 0},
			{0.9, 0.1},
			{0, 1},
		},
		[]vector.Metadata{
			{Document: "france.pdf", Page: 1, Text: "The capital of France is Paris."},
			{Document: "france.pdf", Page: 2, Text: "France is in Europe."},
			{Document: "geo.pdf", Page: 5, Text: "Mountains are tall."},
		},
	)
	require.NoError(t, err)
	return ix
}

func newService(e Embedder, l IndexLoader, g Generator, mem memory.Store) *Service {
	return NewService(e, l, g, mem, nil, 8, 6)
}

func TestAnswer_Grounded(t *testing.T) {
	embedder := new(MockEmbedder)
	loader := new(MockLoader)
	generator := new(MockGenerator)
	mem := memory.NewInMemoryStore()

	loader.On("Load").Return(testIndex(t), nil)
	embedder.On("Embed", mock.Anything, "What is the capital of France?").Return([]float32{1, 0}, nil)
	generator.On("Generate", mock.Anything, mock.Anything).Return("Paris.", nil)

	svc := newService(embedder, loader, generator, mem)
	answer, sources, err := svc.Answer(context.Background(), "sess", "What is the capital of France?")

	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer)
	assert.Equal(t, []string{"france.pdf", "geo.pdf"}, sources, "sources are de-duplicated and sorted")

	turns := mem.Recent("sess", 10)
	require.Len(t, turns, 2)
	assert.Equal(t, memory.Turn{Role: memory.RoleUser, Content: "What is the capital of France?"}, turns[0])
	assert.Equal(t, memory.Turn{Role: memory.RoleAssistant, Content: "Paris."}, turns[1])
}

func TestAnswer_PromptCarriesContextAndInstructions(t *testing.T) {
	embedder := new(MockEmbedder)
	loader := new(MockLoader)
	generator := new(MockGenerator)
	mem := memory.NewInMemoryStore()

	loader.On("Load").Return(testIndex(t), nil)
	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)

	var prompt string
	generator.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { prompt = args.String(1) }).
		Return("Paris.", nil)

	svc := newService(embedder, loader, generator, mem)
	_, _, err := svc.Answer(context.Background(), "sess", "What is the capital of France?")
	require.NoError(t, err)

	assert.Contains(t, prompt, "Use ONLY the provided context.")
	assert.Contains(t, prompt, NotFoundAnswer)
	assert.Contains(t, prompt, "Document: france.pdf | Page: 1")
	assert.Contains(t, prompt, "The capital of France is Paris.")
	assert.Contains(t, prompt, "User Question:\nWhat is the capital of France?")
}

func TestAnswer_SecondQuerySeesHistory(t *testing.T) {
	embedder := new(MockEmbedder)
	loader := new(MockLoader)
	generator := new(MockGenerator)
	mem := memory.NewInMemoryStore()

	loader.On("Load").Return(testIndex(t), nil)
	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)

	var lastPrompt string
	generator.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { lastPrompt = args.String(1) }).
		Return("Paris.", nil)

	svc := newService(embedder, loader, generator, mem)

	_, _, err := svc.Answer(context.Background(), "sess", "What is the capital of France?")
	require.NoError(t, err)

	_, _, err = svc.Answer(context.Background(), "sess", "And its population?")
	require.NoError(t, err)

	assert.Contains(t, lastPrompt, "user: What is the capital of France?")
	assert.Contains(t, lastPrompt, "assistant: Paris.")
}

func TestAnswer_NoIndexShortCircuits(t *testing.T) {
	embedder := new(MockEmbedder)
	loader := new(MockLoader)
	generator := new(MockGenerator)
	mem := memory.NewInMemoryStore()

	loader.On("Load").Return(nil, vector.ErrIndexNotFound)

	svc := newService(embedder, loader, generator, mem)
	answer, sources, err := svc.Answer(context.Background(), "sess", "anything at all")

	require.NoError(t, err)
	assert.Equal(t, NotFoundAnswer, answer)
	assert.Empty(t, sources)
	generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
	assert.Empty(t, mem.Recent("sess", 10), "sentinel answers are not recorded")
}

func TestAnswer_GenerationFailureLeavesMemoryUntouched(t *testing.T) {
	embedder := new(MockEmbedder)
	loader := new(MockLoader)
	generator := new(MockGenerator)
	mem := memory.NewInMemoryStore()

	loader.On("Load").Return(testIndex(t), nil)
	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
	generator.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("upstream timeout"))

	svc := newService(embedder, loader, generator, mem)
	_, _, err := svc.Answer(context.Background(), "sess", "What is the capital of France?")

	require.Error(t, err)
	assert.Empty(t, mem.Recent("sess", 10))
}

func TestAnswer_EmbeddingFailurePropagates(t *testing.T) {
	embedder := new(MockEmbedder)
	loader := new(MockLoader)
	generator := new(MockGenerator)
	mem := memory.NewInMemoryStore()

	loader.On("Load").Return(testIndex(t), nil)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("token limit exceeded"))

	svc := newService(embedder, loader, generator, mem)
	_, _, err := svc.Answer(context.Background(), "sess", "query")

	require.Error(t, err)
	generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	assert.Empty(t, mem.Recent("sess", 10))
}

func TestAnswer_LoaderFailurePropagates(t *testing.T) {
	embedder := new(MockEmbedder)
	loader := new(MockLoader)
	generator := new(MockGenerator)
	mem := memory.NewInMemoryStore()

	loader.On("Load").Return(nil, errors.New("corrupt artifact"))

	svc := newService(embedder, loader, generator, mem)
	_, _, err := svc.Answer(context.Background(), "sess", "query")

	require.Error(t, err)
	assert.NotErrorIs(t, err, vector.ErrIndexNotFound)
}
