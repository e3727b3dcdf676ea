package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pranav/chatterbox/pkg/toolexecutor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		want    string
	}{
		{
			"bold and bullets",
			[]Result{{Content: "**Bold** text\n- item one\n- item two"}},
			"Bold text item one item two",
		},
		{
			"multiple results joined",
			[]Result{{Content: "first"}, {Content: "second"}},
			"first second",
		},
		{
			"whitespace collapsed and trimmed",
			[]Result{{Content: "  lots   of\n\n\nspace  "}},
			"lots of space",
		},
		{
			"unicode bullet",
			[]Result{{Content: "• point one • point two"}},
			"point one point two",
		},
		{
			"no results",
			nil,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.results))
		})
	}
}

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "weather mumbai", req["query"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"title": "Weather", "url": "https://example.com", "content": "32 degrees", "score": 0.9},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))

	results, err := client.Search(context.Background(), "weather mumbai")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "32 degrees", results[0].Content)
}

func TestClient_SearchProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"quota exceeded"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))

	_, err := client.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestTool_RunThroughExecutor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"content": "**Bitcoin** is at $60k\n- up 2% today"},
			},
		})
	}))
	defer srv.Close()

	executor := toolexecutor.New()
	require.NoError(t, executor.Register(Tool(NewClient("k", WithBaseURL(srv.URL)))))

	out, err := executor.Run(context.Background(), ToolName, json.RawMessage(`{"query":"bitcoin price"}`))
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin is at $60k up 2% today", out)
}

func TestTool_MissingQueryRejected(t *testing.T) {
	executor := toolexecutor.New()
	require.NoError(t, executor.Register(Tool(NewClient("k"))))

	_, err := executor.Run(context.Background(), ToolName, json.RawMessage(`{"q":"typo"}`))
	assert.ErrorIs(t, err, toolexecutor.ErrInvalidArguments)
}

func TestTool_ProviderFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	executor := toolexecutor.New()
	require.NoError(t, executor.Register(Tool(NewClient("k", WithBaseURL(srv.URL)))))

	_, err := executor.Run(context.Background(), ToolName, json.RawMessage(`{"query":"x"}`))
	assert.ErrorIs(t, err, toolexecutor.ErrExecutionFailed)
}
