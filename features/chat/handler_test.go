package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docqa/features/chat"
	"docqa/internal/memory"
)

type MockAnswerer struct {
	mock.Mock
}

func (m *MockAnswerer) Answer(ctx context.Context, sessionID, query string) (string, []string, error) {
	args := m.Called(ctx, sessionID, query)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).([]string), args.Error(2)
}

func TestHandler_Ask(t *testing.T) {
	a := new(MockAnswerer)
	handler := chat.NewHandler(a, memory.NewInMemoryStore(), 5)

	a.On("Answer", mock.Anything, "s1", "What is the capital of France?").
		Return("Paris.", []string{"france.pdf"}, nil)

	body := `{"session_id":"s1","query":"What is the capital of France?"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Ask(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Answer  string   `json:"answer"`
		Sources []string `json:"sources"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Paris.", resp.Answer)
	assert.Equal(t, []string{"france.pdf"}, resp.Sources)
	a.AssertExpectations(t)
}

func TestHandler_Ask_DefaultSession(t *testing.T) {
	a := new(MockAnswerer)
	handler := chat.NewHandler(a, memory.NewInMemoryStore(), 5)

	a.On("Answer", mock.Anything, chat.DefaultSessionID, "hello").
		Return("Not found in the documents.", []string{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":"hello"}`))
	rec := httptest.NewRecorder()

	handler.Ask(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	a.AssertExpectations(t)
}

func TestHandler_Ask_Validation(t *testing.T) {
	a := new(MockAnswerer)
	handler := chat.NewHandler(a, memory.NewInMemoryStore(), 5)

	t.Run("EmptyQuery", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"session_id":"s1","query":"  "}`))
		rec := httptest.NewRecorder()

		handler.Ask(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "query is required")
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{not json`))
		rec := httptest.NewRecorder()

		handler.Ask(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	a.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_Ask_ServiceError(t *testing.T) {
	a := new(MockAnswerer)
	handler := chat.NewHandler(a, memory.NewInMemoryStore(), 5)

	a.On("Answer", mock.Anything, "s1", "boom").Return("", nil, errors.New("generation failed"))

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"session_id":"s1","query":"boom"}`))
	rec := httptest.NewRecorder()

	handler.Ask(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestHandler_ResetSession(t *testing.T) {
	mem := memory.NewInMemoryStore()
	handler := chat.NewHandler(new(MockAnswerer), mem, 5)

	mem.Append("s1", memory.RoleUser, "hello")
	mem.Append("s1", memory.RoleAssistant, "hi")

	req := httptest.NewRequest(http.MethodPost, "/session/reset", strings.NewReader(`{"session_id":"s1"}`))
	rec := httptest.NewRecorder()

	handler.ResetSession(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "session cleared")
	assert.Empty(t, mem.Recent("s1", 10))
}

func TestHandler_ResetSession_EmptyBody(t *testing.T) {
	mem := memory.NewInMemoryStore()
	handler := chat.NewHandler(new(MockAnswerer), mem, 5)

	req := httptest.NewRequest(http.MethodPost, "/session/reset", strings.NewReader(""))
	rec := httptest.NewRecorder()

	handler.ResetSession(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "session cleared")
}

func TestHandler_History(t *testing.T) {
	mem := memory.NewInMemoryStore()
	handler := chat.NewHandler(new(MockAnswerer), mem, 2)

	mem.Append("s1", memory.RoleUser, "first question")
	mem.Append("s1", memory.RoleAssistant, "first answer")
	mem.Append("s1", memory.RoleUser, "second question")
	mem.Append("s1", memory.RoleAssistant, "second answer")

	req := httptest.NewRequest(http.MethodGet, "/sessions/s1/history", nil)
	req.SetPathValue("id", "s1")
	rec := httptest.NewRecorder()

	handler.History(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SessionID string        `json:"session_id"`
		Turns     []memory.Turn `json:"turns"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "s1", resp.SessionID)
	// Window of 2 keeps only the latest turns.
	require.Len(t, resp.Turns, 2)
	assert.Equal(t, "second question", resp.Turns[0].Content)
	assert.Equal(t, "second answer", resp.Turns[1].Content)
}

func TestHandler_History_UnknownSession(t *testing.T) {
	handler := chat.NewHandler(new(MockAnswerer), memory.NewInMemoryStore(), 5)

	req := httptest.NewRequest(http.MethodGet, "/sessions/ghost/history", nil)
	req.SetPathValue("id", "ghost")
	rec := httptest.NewRecorder()

	handler.History(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"turns":[]`)
}
