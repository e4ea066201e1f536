// Package summarizer lazily regenerates per-thread summaries on read,
// never on the write path, incrementally when possible.
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vaultlabs/vlt/internal/cache"
	"github.com/vaultlabs/vlt/internal/llmclient"
	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

const (
	model       = "gpt-4o-mini"
	temperature = 0.2
	maxTokens   = 800
	timeout     = 30 * time.Second

	emptyThreadSummary = "No content in this thread yet."
)

// SummaryStore is the persistence surface the summariser needs.
type SummaryStore interface {
	GetThreadSummaryCache(ctx context.Context, threadID string) (vaultmodel.ThreadSummaryCache, bool, error)
	UpsertThreadSummaryCache(ctx context.Context, c vaultmodel.ThreadSummaryCache) error
	NodeExists(ctx context.Context, nodeID string) (bool, error)
	NodesAfterSequence(ctx context.Context, threadID string, after int64) ([]vaultmodel.Node, error)
	GreatestSequenceNode(ctx context.Context, threadID string) (vaultmodel.Node, bool, error)
	ListNodes(ctx context.Context, threadID string) ([]vaultmodel.Node, error)
}

// Summarizer generates and caches per-thread summaries.
type Summarizer struct {
	Store SummaryStore
	LLM   *llmclient.Client

	// Cache is an optional Redis fast-path in front of the anchor-node
	// existence check; nil disables it and every check hits the store.
	Cache *cache.SummaryCache
}

type staleness struct {
	stale            bool
	lastSummarizedID *string
	newNodeCount     int
}

// GenerateSummary returns the thread's summary, regenerating it first if
// stale (or always, when force is set).
func (s *Summarizer) GenerateSummary(ctx context.Context, threadID string, force bool) (string, error) {
	sc, found, err := s.Store.GetThreadSummaryCache(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("load summary cache for %s: %w", threadID, err)
	}

	if !force {
		st, err := s.computeStaleness(ctx, threadID, sc, found)
		if err != nil {
			return "", err
		}
		if !st.stale {
			return sc.Summary, nil
		}
		if st.lastSummarizedID != nil {
			return s.incremental(ctx, threadID, sc, *st.lastSummarizedID)
		}
		return s.full(ctx, threadID)
	}
	return s.full(ctx, threadID)
}

// anchorExists checks whether a cached anchor node still exists, consulting
// the optional Redis fast-path first so a thread whose summary nobody has
// touched in its TTL window skips the store round trip.
func (s *Summarizer) anchorExists(ctx context.Context, threadID, nodeID string) (bool, error) {
	if cached, ok := s.Cache.GetAnchor(ctx, threadID); ok && cached == nodeID {
		return true, nil
	}
	exists, err := s.Store.NodeExists(ctx, nodeID)
	if err != nil {
		return false, err
	}
	if exists {
		s.Cache.SetAnchor(ctx, threadID, nodeID)
	} else {
		s.Cache.Invalidate(ctx, threadID)
	}
	return exists, nil
}

func (s *Summarizer) computeStaleness(ctx context.Context, threadID string, sc vaultmodel.ThreadSummaryCache, found bool) (staleness, error) {
	if !found {
		nodes, err := s.Store.ListNodes(ctx, threadID)
		if err != nil {
			return staleness{}, fmt.Errorf("list nodes for %s: %w", threadID, err)
		}
		return staleness{stale: true, newNodeCount: len(nodes)}, nil
	}

	if sc.LastSummarizedNodeID != nil {
		exists, err := s.anchorExists(ctx, threadID, *sc.LastSummarizedNodeID)
		if err != nil {
			return staleness{}, fmt.Errorf("check anchor node %s: %w", *sc.LastSummarizedNodeID, err)
		}
		if !exists {
			nodes, err := s.Store.ListNodes(ctx, threadID)
			if err != nil {
				return staleness{}, fmt.Errorf("list nodes for %s: %w", threadID, err)
			}
			return staleness{stale: true, newNodeCount: len(nodes)}, nil
		}
	}

	greatest, ok, err := s.Store.GreatestSequenceNode(ctx, threadID)
	if err != nil {
		return staleness{}, fmt.Errorf("greatest node for %s: %w", threadID, err)
	}
	if !ok {
		return staleness{stale: false}, nil
	}

	if sc.LastSummarizedNodeID != nil && *sc.LastSummarizedNodeID == greatest.ID {
		return staleness{stale: false}, nil
	}

	newNodes, err := s.newNodesSince(ctx, threadID, sc)
	if err != nil {
		return staleness{}, err
	}
	lastID := sc.LastSummarizedNodeID
	return staleness{stale: true, lastSummarizedID: lastID, newNodeCount: len(newNodes)}, nil
}

func (s *Summarizer) newNodesSince(ctx context.Context, threadID string, sc vaultmodel.ThreadSummaryCache) ([]vaultmodel.Node, error) {
	anchorSeq, err := s.anchorSequence(ctx, threadID, sc)
	if err != nil {
		return nil, err
	}
	return s.Store.NodesAfterSequence(ctx, threadID, anchorSeq)
}

func (s *Summarizer) anchorSequence(ctx context.Context, threadID string, sc vaultmodel.ThreadSummaryCache) (int64, error) {
	if sc.LastSummarizedNodeID == nil {
		return 0, nil
	}
	nodes, err := s.Store.ListNodes(ctx, threadID)
	if err != nil {
		return 0, err
	}
	for _, n := range nodes {
		if n.ID == *sc.LastSummarizedNodeID {
			return n.SequenceID, nil
		}
	}
	return 0, nil
}

func (s *Summarizer) incremental(ctx context.Context, threadID string, sc vaultmodel.ThreadSummaryCache, lastID string) (string, error) {
	newNodes, err := s.newNodesSince(ctx, threadID, sc)
	if err != nil {
		return "", err
	}
	if len(newNodes) == 0 {
		return sc.Summary, nil
	}

	newContent := joinBullets(newNodes)
	summary, tokens, err := s.complete(ctx, sc.Summary, newContent)
	if err != nil {
		return "", err
	}

	greatest := newNodes[len(newNodes)-1]
	greatestID := greatest.ID
	err = s.Store.UpsertThreadSummaryCache(ctx, vaultmodel.ThreadSummaryCache{
		ThreadID:             threadID,
		Summary:              summary,
		LastSummarizedNodeID: &greatestID,
		NodeCount:            sc.NodeCount + len(newNodes),
		Model:                model,
		TokensUsed:           tokens,
		GeneratedAt:          time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("upsert summary cache for %s: %w", threadID, err)
	}
	s.Cache.SetAnchor(ctx, threadID, greatestID)
	return summary, nil
}

func (s *Summarizer) full(ctx context.Context, threadID string) (string, error) {
	nodes, err := s.Store.ListNodes(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("list nodes for %s: %w", threadID, err)
	}
	if len(nodes) == 0 {
		empty := emptyThreadSummary
		_ = s.Store.UpsertThreadSummaryCache(ctx, vaultmodel.ThreadSummaryCache{
			ThreadID: threadID,
			Summary:  empty,
			Model:    model,
		})
		return empty, nil
	}

	summary, tokens, err := s.complete(ctx, "", joinBullets(nodes))
	if err != nil {
		return "", err
	}

	greatestID := nodes[len(nodes)-1].ID
	err = s.Store.UpsertThreadSummaryCache(ctx, vaultmodel.ThreadSummaryCache{
		ThreadID:             threadID,
		Summary:              summary,
		LastSummarizedNodeID: &greatestID,
		NodeCount:            len(nodes),
		Model:                model,
		TokensUsed:           tokens,
		GeneratedAt:          time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("upsert summary cache for %s: %w", threadID, err)
	}
	s.Cache.SetAnchor(ctx, threadID, greatestID)
	return summary, nil
}

func (s *Summarizer) complete(ctx context.Context, existing, newContent string) (string, int, error) {
	if s.LLM == nil || !s.LLM.Available() {
		return fallbackSummary(existing, newContent), 0, nil
	}

	var prompt strings.Builder
	if existing != "" {
		prompt.WriteString("Existing summary:\n")
		prompt.WriteString(existing)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("New content to incorporate:\n")
	prompt.WriteString(newContent)
	prompt.WriteString("\n\nWrite an updated concise summary of this conversation thread.")

	result, err := s.LLM.Complete(ctx, model, []llmclient.ChatMessage{
		{Role: "user", Content: prompt.String()},
	}, temperature, maxTokens, timeout)
	if err != nil {
		return fallbackSummary(existing, newContent), 0, nil
	}
	return result.Content, result.TotalTokens, nil
}

func fallbackSummary(existing, newContent string) string {
	if existing == "" {
		return newContent
	}
	return existing + "\n" + newContent
}

func joinBullets(nodes []vaultmodel.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString("- ")
		b.WriteString(n.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// TriggerAsync satisfies internal/retrieval's SummaryTrigger interface: it
// regenerates a thread's summary in a best-effort background goroutine so
// a matching thread result is never stale for long.
func (s *Summarizer) TriggerAsync(threadID string) {
	go func() {
		defer func() { _ = recover() }()
		_, _ = s.GenerateSummary(context.Background(), threadID, false)
	}()
}
