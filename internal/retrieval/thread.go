package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/vaultlabs/vlt/internal/llmclient"
	"github.com/vaultlabs/vlt/internal/obslog"
	"github.com/vaultlabs/vlt/internal/store"
	"github.com/vaultlabs/vlt/internal/tokenest"
	"github.com/vaultlabs/vlt/internal/vectorutil"
)

// SummaryTrigger is the lazy summariser's entry point, invoked as a
// best-effort side effect of a thread hit. Kept as a narrow interface so
// this package never imports the summariser directly.
type SummaryTrigger interface {
	TriggerAsync(threadID string)
}

// ThreadRetriever performs a vector scan over thread nodes, scoped to a
// project, and nudges the lazy summariser for any thread it matches.
type ThreadRetriever struct {
	Store      *store.Store
	LLM        *llmclient.Client
	Project    string
	EmbedModel string
	Summarizer SummaryTrigger // optional
}

func (r *ThreadRetriever) Name() string { return "thread" }

func (r *ThreadRetriever) Available(ctx context.Context) bool {
	return r.LLM != nil && r.LLM.Available()
}

func (r *ThreadRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Result, error) {
	if !r.Available(ctx) {
		return nil, nil
	}

	embeddings, err := r.LLM.Embed(ctx, r.EmbedModel, []string{query})
	if err != nil {
		return nil, wrapQueryError(r.Name(), fmt.Errorf("embed query: %w", err))
	}
	queryVec := vectorutil.Normalize(embeddings[0])

	nodes, err := r.Store.NodesWithEmbeddingByProject(ctx, r.Project)
	if err != nil {
		return nil, wrapQueryError(r.Name(), fmt.Errorf("nodes with embedding: %w", err))
	}

	candidates := make([]vectorutil.Candidate, 0, len(nodes))
	byKey := make(map[string]vaultmodelNode, len(nodes))
	for _, n := range nodes {
		blob := vectorutil.Serialize(n.Embedding)
		candidates = append(candidates, vectorutil.Candidate{Key: n.ID, Blob: blob})
		byKey[n.ID] = vaultmodelNode{
			threadID:   n.ThreadID,
			sequenceID: n.SequenceID,
			content:    n.Content,
			author:     n.Author,
			timestamp:  n.Timestamp,
		}
	}

	scored, err := vectorutil.SearchMemory(queryVec, candidates, limit)
	if err != nil {
		return nil, wrapQueryError(r.Name(), fmt.Errorf("search memory: %w", err))
	}

	triggered := make(map[string]bool)
	out := make([]Result, 0, len(scored))
	for _, sc := range scored {
		n, ok := byKey[sc.Key]
		if !ok {
			continue
		}
		out = append(out, Result{
			Content:    n.content,
			SourceType: SourceThread,
			SourcePath: fmt.Sprintf("thread:%s#%d", n.threadID, n.sequenceID),
			Method:     MethodVector,
			Score:      sc.Similarity,
			TokenCount: tokenest.Estimate(n.content),
			Metadata:   map[string]any{"thread_id": n.threadID, "sequence_id": n.sequenceID, "author": n.author, "timestamp": n.timestamp},
		})

		if r.Summarizer != nil && !triggered[n.threadID] {
			triggered[n.threadID] = true
			func() {
				defer func() {
					if p := recover(); p != nil {
						obslog.Get().Warn().Interface("panic", p).Msg("thread retriever: summariser trigger panicked")
					}
				}()
				r.Summarizer.TriggerAsync(n.threadID)
			}()
		}
	}
	return out, nil
}

type vaultmodelNode struct {
	threadID   string
	sequenceID int64
	content    string
	author     string
	timestamp  time.Time
}
