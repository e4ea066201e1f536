package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/vaultlabs/vlt/internal/obslog"
	"github.com/vaultlabs/vlt/internal/tokenest"
)

// VaultRetriever queries an external vault service's note search endpoint
// over HTTP. Network failures never propagate: an unreachable vault is a
// retriever with nothing to contribute, not a query error.
type VaultRetriever struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (r *VaultRetriever) Name() string { return "vault" }

func (r *VaultRetriever) Available(ctx context.Context) bool { return r.BaseURL != "" }

type vaultSearchResponse struct {
	Results []struct {
		Path    string  `json:"path"`
		Title   string  `json:"title"`
		Snippet string  `json:"snippet"`
		Score   float64 `json:"score"`
		Updated string  `json:"updated"`
	} `json:"results"`
}

func (r *VaultRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Result, error) {
	if r.BaseURL == "" {
		return nil, nil
	}
	client := r.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	reqURL := fmt.Sprintf("%s/api/search?q=%s&limit=%d", r.BaseURL, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		obslog.Get().Warn().Err(err).Msg("vault retriever: build request")
		return nil, nil
	}

	resp, err := client.Do(req)
	if err != nil {
		obslog.Get().Warn().Err(err).Msg("vault retriever: request failed")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		obslog.Get().Warn().Int("status", resp.StatusCode).Msg("vault retriever: non-200 response")
		return nil, nil
	}

	var parsed vaultSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		obslog.Get().Warn().Err(err).Msg("vault retriever: decode response")
		return nil, nil
	}

	out := make([]Result, 0, len(parsed.Results))
	for _, h := range parsed.Results {
		content := h.Title
		if h.Snippet != "" {
			content += "\n\n" + h.Snippet
		}
		out = append(out, Result{
			Content:    content,
			SourceType: SourceVault,
			SourcePath: h.Path,
			Method:     MethodVector,
			Score:      h.Score,
			TokenCount: tokenest.Estimate(content),
			Metadata:   map[string]any{"title": h.Title, "updated": h.Updated},
		})
	}
	return out, nil
}
