// Package reranker re-scores a candidate result list with a cheap chat
// model, falling back to the candidates' own source scores whenever the
// LLM path isn't usable.
package reranker

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/vaultlabs/vlt/internal/llmclient"
	"github.com/vaultlabs/vlt/internal/obslog"
	"github.com/vaultlabs/vlt/internal/retrieval"
)

const (
	maxContentPreview = 300
	timeout           = 30 * time.Second
	temperature       = 0
	maxTokens         = 500
)

var arrayPattern = regexp.MustCompile(`\[[^\[\]]*\]`)

// Rerank returns the k highest-scoring candidates by LLM judgement. It
// falls back to a pure descending-score sort when the LLM is unavailable,
// there are already ≤ k candidates, the call fails, or the response isn't
// parseable as a JSON array of numbers.
func Rerank(ctx context.Context, llm *llmclient.Client, model, query string, candidates []retrieval.Result, k int) []retrieval.Result {
	if !llm.Available() || len(candidates) <= k {
		return sortByScore(candidates, k)
	}

	scores, err := scoreViaLLM(ctx, llm, model, query, candidates)
	if err != nil {
		obslog.Get().Warn().Err(err).Msg("reranker: falling back to score sort")
		return sortByScore(candidates, k)
	}

	ranked := make([]retrieval.Result, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].Score = scores[i]
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if k >= 0 && k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}

func sortByScore(candidates []retrieval.Result, k int) []retrieval.Result {
	out := make([]retrieval.Result, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k >= 0 && k < len(out) {
		out = out[:k]
	}
	return out
}

// scoreViaLLM asks the chat model for one 0..10 score per candidate, in
// order, and normalises the result to [0,1].
func scoreViaLLM(ctx context.Context, llm *llmclient.Client, model, query string, candidates []retrieval.Result) ([]float64, error) {
	prompt := buildPrompt(query, candidates)

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := llm.Complete(cctx, model, []llmclient.ChatMessage{
		{Role: "user", Content: prompt},
	}, temperature, maxTokens, timeout)
	if err != nil {
		return nil, fmt.Errorf("rerank completion: %w", err)
	}

	raw := arrayPattern.FindString(result.Content)
	if raw == "" {
		return nil, fmt.Errorf("rerank response has no JSON array: %q", result.Content)
	}

	var parsed []float64
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("rerank response array invalid: %w", err)
	}

	scores := make([]float64, len(candidates))
	for i := range scores {
		if i < len(parsed) {
			scores[i] = clamp(parsed[i], 0, 10) / 10
		}
		// missing trailing entries default to 0, per "pad to candidate length"
	}
	return scores, nil
}

func buildPrompt(query string, candidates []retrieval.Result) string {
	var b strings.Builder
	b.WriteString("Score the relevance of each candidate below to the query on a scale of 0 to 10.\n")
	b.WriteString("Respond with ONLY a JSON array of numbers, one per candidate, in order.\n\n")
	fmt.Fprintf(&b, "Query: %s\n\n", query)
	for i, c := range candidates {
		content := c.Content
		if len(content) > maxContentPreview {
			content = content[:maxContentPreview]
		}
		fmt.Fprintf(&b, "%d. [%s:%s] %s\n", i+1, c.SourceType, c.SourcePath, content)
	}
	return b.String()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
