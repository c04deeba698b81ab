package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docqa/internal/vector"
)

type MockDocumentRepo struct{ mock.Mock }

func (m *MockDocumentRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockIndexLoader struct{ mock.Mock }

func (m *MockIndexLoader) Load() (*vector.Index, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vector.Index), args.Error(1)
}

func TestHandler_GetStats_Table(t *testing.T) {
	builtIndex := func(t *testing.T, n int) *vector.Index {
		t.Helper()
		vectors := make([][]float32, n)
		metas := make([]vector.Metadata, n)
		for i := range vectors {
			vectors[i] = []float32{float32(i), 0}
			metas[i] = vector.Metadata{Document: "doc.pdf", Page: 1, Text: "chunk"}
		}
		ix, err := vector.Build(vectors, metas)
		require.NoError(t, err)
		return ix
	}

	tests := []struct {
		name       string
		setupMocks func(*MockDocumentRepo, *MockIndexLoader)
		wantStatus int
		checkBody  func(*testing.T, map[string]interface{})
	}{
		{
			name: "Success",
			setupMocks: func(d *MockDocumentRepo, ix *MockIndexLoader) {
				d.On("Count", mock.Anything).Return(3, nil)
				ix.On("Load").Return(builtIndex(t, 12), nil)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.EqualValues(t, 3, data["documents"])
				assert.EqualValues(t, 12, data["chunks"])
			},
		},
		{
			name: "EmptyCorpus",
			setupMocks: func(d *MockDocumentRepo, ix *MockIndexLoader) {
				d.On("Count", mock.Anything).Return(0, nil)
				ix.On("Load").Return(nil, vector.ErrIndexNotFound)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.EqualValues(t, 0, data["documents"])
				assert.EqualValues(t, 0, data["chunks"])
			},
		},
		{
			name: "RepoError",
			setupMocks: func(d *MockDocumentRepo, ix *MockIndexLoader) {
				d.On("Count", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "IndexError",
			setupMocks: func(d *MockDocumentRepo, ix *MockIndexLoader) {
				d.On("Count", mock.Anything).Return(3, nil)
				ix.On("Load").Return(nil, errors.New("corrupt artifact"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := new(MockDocumentRepo)
			ix := new(MockIndexLoader)
			tt.setupMocks(d, ix)

			handler := NewHandler(d, ix)

			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			rec := httptest.NewRecorder()

			handler.GetStats(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.checkBody != nil {
				var body map[string]interface{}
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				tt.checkBody(t, body)
			}
		})
	}
}
