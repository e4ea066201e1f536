package retrieval

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVaultRetriever_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "/api/search", req.URL.Path)
		require.Equal(t, "caching strategy", req.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"path":"notes/caching.md","title":"Caching Strategy","snippet":"use an LRU","score":0.9,"updated":"2026-01-01"}]}`))
	}))
	defer srv.Close()

	r := &VaultRetriever{BaseURL: srv.URL}
	results, err := r.Retrieve(context.Background(), "caching strategy", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, SourceVault, results[0].SourceType)
	require.Equal(t, "notes/caching.md", results[0].SourcePath)
	require.Equal(t, 0.9, results[0].Score)
}

func TestVaultRetriever_NotFound_ReturnsEmptyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := &VaultRetriever{BaseURL: srv.URL}
	results, err := r.Retrieve(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestVaultRetriever_Unavailable_WhenNoBaseURL(t *testing.T) {
	r := &VaultRetriever{}
	require.False(t, r.Available(context.Background()))
	results, err := r.Retrieve(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Empty(t, results)
}
