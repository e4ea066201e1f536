package reranker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultlabs/vlt/internal/llmclient"
	"github.com/vaultlabs/vlt/internal/retrieval"
)

func candidates() []retrieval.Result {
	return []retrieval.Result{
		{Content: "alpha content", SourceType: retrieval.SourceCode, SourcePath: "a.py:1", Score: 0.5},
		{Content: "beta content", SourceType: retrieval.SourceCode, SourcePath: "b.py:1", Score: 0.9},
		{Content: "gamma content", SourceType: retrieval.SourceCode, SourcePath: "c.py:1", Score: 0.1},
	}
}

func chatServerReturning(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
			"usage":   map[string]any{"total_tokens": 42},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestRerank_FallsBackWhenNoAPIKey(t *testing.T) {
	llm := llmclient.New("", "", "", "")
	out := Rerank(context.Background(), llm, "model", "query", candidates(), 2)
	require.Len(t, out, 2)
	require.Equal(t, "b.py:1", out[0].SourcePath)
	require.Equal(t, "a.py:1", out[1].SourcePath)
}

func TestRerank_FallsBackWhenCandidatesLessThanK(t *testing.T) {
	llm := llmclient.New("x", "key", "x", "key")
	out := Rerank(context.Background(), llm, "model", "query", candidates()[:1], 5)
	require.Len(t, out, 1)
}

func TestRerank_UsesLLMScores(t *testing.T) {
	srv := chatServerReturning(t, "Here are the scores: [1, 9, 5]")
	defer srv.Close()
	llm := llmclient.New(srv.URL, "key", srv.URL, "key")

	out := Rerank(context.Background(), llm, "model", "query", candidates(), 2)
	require.Len(t, out, 2)
	require.Equal(t, "b.py:1", out[0].SourcePath)
	require.Equal(t, "c.py:1", out[1].SourcePath)
}

func TestRerank_FallsBackOnInvalidJSON(t *testing.T) {
	srv := chatServerReturning(t, "not a json array at all")
	defer srv.Close()
	llm := llmclient.New(srv.URL, "key", srv.URL, "key")

	out := Rerank(context.Background(), llm, "model", "query", candidates(), 2)
	require.Len(t, out, 2)
	require.Equal(t, "b.py:1", out[0].SourcePath)
}

func TestRerank_FallsBackOnLLMError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	llm := llmclient.New(srv.URL, "key", srv.URL, "key")

	out := Rerank(context.Background(), llm, "model", "query", candidates(), 2)
	require.Len(t, out, 2)
	require.Equal(t, "b.py:1", out[0].SourcePath)
}
