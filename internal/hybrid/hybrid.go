// Package hybrid fans a query out across the available retrievers
// concurrently, merges and deduplicates their results, and optionally
// hands the merged list to the reranker.
package hybrid

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/vaultlabs/vlt/internal/llmclient"
	"github.com/vaultlabs/vlt/internal/reranker"
	"github.com/vaultlabs/vlt/internal/retrieval"
)

// Options configures one hybrid_retrieve call.
type Options struct {
	Retrievers  []retrieval.Retriever // nil selects the default set at the call site
	K           int                   // default 20
	UseRerank   bool
	RerankModel string
}

// Retrieve fans query out to every available retriever in parallel (each
// queried for 2*k results to give the merge step headroom), merges the
// results sorted descending by score, deduplicates by source path (first
// occurrence wins — no method-diversity bonus), and either reranks or
// truncates to k.
func Retrieve(ctx context.Context, llm *llmclient.Client, query string, opts Options) []retrieval.Result {
	k := opts.K
	if k <= 0 {
		k = 20
	}
	limit := 2 * k

	available := make([]retrieval.Retriever, 0, len(opts.Retrievers))
	for _, r := range opts.Retrievers {
		if r.Available(ctx) {
			available = append(available, r)
		}
	}

	perRetriever := make([][]retrieval.Result, len(available))
	var g errgroup.Group
	for i, r := range available {
		i, r := i, r
		g.Go(func() error {
			perRetriever[i] = retrieval.RetrieveSafe(ctx, r, query, limit)
			return nil
		})
	}
	_ = g.Wait() // RetrieveSafe never returns an error to propagate

	merged := mergeDedupe(perRetriever)

	if opts.UseRerank && llm.Available() && len(merged) > 0 {
		return reranker.Rerank(ctx, llm, opts.RerankModel, query, merged, k)
	}
	if k < len(merged) {
		merged = merged[:k]
	}
	return merged
}

// mergeDedupe flattens per-retriever result slices, sorts descending by
// score, and keeps only the first occurrence of each source path.
func mergeDedupe(perRetriever [][]retrieval.Result) []retrieval.Result {
	var all []retrieval.Result
	for _, rs := range perRetriever {
		all = append(all, rs...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })

	seen := make(map[string]bool, len(all))
	out := make([]retrieval.Result, 0, len(all))
	for _, r := range all {
		if seen[r.SourcePath] {
			continue
		}
		seen[r.SourcePath] = true
		out = append(out, r)
	}
	return out
}
