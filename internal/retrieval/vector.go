package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/vaultlabs/vlt/internal/llmclient"
	"github.com/vaultlabs/vlt/internal/store"
	"github.com/vaultlabs/vlt/internal/tokenest"
	"github.com/vaultlabs/vlt/internal/vectorutil"
)

// VectorRetriever computes a query embedding and brute-force scans every
// chunk in the project carrying a non-null embedding.
type VectorRetriever struct {
	Store      *store.Store
	LLM        *llmclient.Client
	Project    string
	EmbedModel string
}

func (r *VectorRetriever) Name() string { return "vector" }

// Available is false when no chat/embedding API key is configured.
func (r *VectorRetriever) Available(ctx context.Context) bool {
	return r.LLM.Available()
}

func (r *VectorRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Result, error) {
	if !r.Available(ctx) {
		return nil, nil
	}
	vecs, err := r.LLM.Embed(ctx, r.EmbedModel, []string{query})
	if err != nil {
		return nil, wrapQueryError(r.Name(), fmt.Errorf("embed query: %w", err))
	}
	queryVec := vectorutil.Normalize(vecs[0])

	chunks, err := r.Store.AllChunksWithEmbedding(ctx, r.Project)
	if err != nil {
		return nil, wrapQueryError(r.Name(), fmt.Errorf("load chunks: %w", err))
	}

	type scoredChunk struct {
		idx   int
		score float64
	}
	scored := make([]scoredChunk, 0, len(chunks))
	for i, c := range chunks {
		sim := vectorutil.CosineSimilarity(queryVec, vectorutil.Normalize(c.Embedding))
		if sim < 0 {
			sim = 0
		}
		if sim > 1 {
			sim = 1
		}
		scored = append(scored, scoredChunk{idx: i, score: sim})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	if limit > 0 && limit < len(scored) {
		scored = scored[:limit]
	}

	out := make([]Result, 0, len(scored))
	for _, sc := range scored {
		c := chunks[sc.idx]
		content := renderCodeContent(c)
		out = append(out, Result{
			Content:    content,
			SourceType: SourceCode,
			SourcePath: fmt.Sprintf("%s:%d", c.FilePath, c.StartLine),
			Method:     MethodVector,
			Score:      sc.score,
			TokenCount: tokenest.Estimate(content),
			Metadata:   map[string]any{"chunk_id": c.ID, "qualified_name": c.QualifiedName, "language": c.Language},
		})
	}
	return out, nil
}
