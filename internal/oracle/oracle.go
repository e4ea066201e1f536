// Package oracle implements the single asynchronous query entry point that
// ties query analysis, hybrid retrieval, context assembly, and synthesis
// together into one answer.
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/vaultlabs/vlt/internal/contextasm"
	"github.com/vaultlabs/vlt/internal/conversation"
	"github.com/vaultlabs/vlt/internal/delta"
	"github.com/vaultlabs/vlt/internal/hybrid"
	"github.com/vaultlabs/vlt/internal/llmclient"
	"github.com/vaultlabs/vlt/internal/promptbuilder"
	"github.com/vaultlabs/vlt/internal/queryanalyzer"
	"github.com/vaultlabs/vlt/internal/querytype"
	"github.com/vaultlabs/vlt/internal/retrieval"
	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

const (
	synthesisTemperature = 0.3
	synthesisMaxTokens   = 4000
	synthesisTimeout     = 60 * time.Second

	defaultMaxContextTokens = 16000
	defaultTopK             = 20

	costPerKToken = 0.001 // USD per 1000 tokens
	centsPerUSD   = 100.0
)

// Source names accepted by the query's sources filter.
const (
	SourceCode    = "code"
	SourceVault   = "vault"
	SourceThreads = "threads"
)

// RetrieverSet names the retrievers the orchestrator dispatches to, keyed
// by the source category they belong to.
type RetrieverSet struct {
	Vector retrieval.Retriever
	BM25   retrieval.Retriever
	Graph  retrieval.Retriever
	Vault  retrieval.Retriever
	Thread retrieval.Retriever
}

// RepoMapProvider optionally supplies a rendered repo-map slice; nil
// disables repo-map inclusion entirely (the heavy-parse pipeline being
// unavailable is an expected, non-fatal condition).
type RepoMapProvider interface {
	RepoMapSlice(ctx context.Context, project string, budget int) (string, error)
}

// Orchestrator wires every Oracle component together for one project.
type Orchestrator struct {
	Project        string
	Retrievers     RetrieverSet
	LLM            *llmclient.Client
	SynthesisModel string
	RerankModel    string
	Conversations  *conversation.Manager
	RepoMap        RepoMapProvider

	// Delta optionally drives just-in-time indexing: when set, a query
	// promotes any queued files its text names to priority=critical and,
	// when any matched, commits the queue before retrieval runs, so a just-edited file is
	// never stale for the answer that asks about it. Nil disables this
	// step; retrieval then only ever sees the last batch commit.
	Delta *delta.Manager
}

// Options configures one query call; zero values take spec defaults.
type Options struct {
	Sources          []string // nil selects all source categories
	Explain          bool
	MaxContextTokens int
	IncludeRepoMap   bool
	UserID           string
	UseConversation  bool
}

// SourceStats summarizes one source type's contribution for the explain
// trace.
type SourceStats struct {
	Count     int
	MeanScore float64
}

// Traces bundles the diagnostic detail attached when Explain is requested.
type Traces struct {
	QueryAnalysis  queryanalyzer.Analysis
	PerSource      map[string]SourceStats
	ContextStats   map[string]contextasm.SectionStats
	TimingsMillis  map[string]int64
	ConversationID string
	Citations      []string
}

// Response is the Oracle's answer plus provenance.
type Response struct {
	Answer       string
	Sources      []retrieval.Result
	RepoMapSlice string
	Traces       *Traces
	QueryType    querytype.Type
	Model        string
	TokensUsed   int
	CostCents    float64
	DurationMs   int64
}

// Query runs the full 12-step pipeline described for the Oracle entry
// point.
func (o *Orchestrator) Query(ctx context.Context, question string, opts Options) (Response, error) {
	start := time.Now()
	timings := map[string]int64{}

	maxContextTokens := opts.MaxContextTokens
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}

	var conv *vaultmodel.OracleConversation
	var conversationContext string
	if opts.UseConversation && opts.UserID != "" && o.Conversations != nil {
		t0 := time.Now()
		c, err := o.Conversations.GetOrCreateSession(ctx, o.Project, opts.UserID)
		if err != nil {
			return Response{}, fmt.Errorf("conversation session: %w", err)
		}
		conv = &c
		conversationContext = conversation.GetConversationContext(c, maxContextTokens/4)
		timings["conversation"] = time.Since(t0).Milliseconds()
	}

	if o.Delta != nil {
		t0 := time.Now()
		if matched, err := o.Delta.PromoteMatching(ctx, question); err == nil && len(matched) > 0 {
			_ = o.Delta.Commit(ctx)
		}
		timings["jit_index"] = time.Since(t0).Milliseconds()
	}

	t0 := time.Now()
	analysis := queryanalyzer.Analyze(question)
	timings["query_analysis"] = time.Since(t0).Milliseconds()

	retrievers := o.buildRetrieverList(opts.Sources)

	t0 = time.Now()
	useRerank := o.LLM != nil && o.LLM.Available()
	merged := hybrid.Retrieve(ctx, o.LLM, question, hybrid.Options{
		Retrievers:  retrievers,
		K:           defaultTopK,
		UseRerank:   useRerank,
		RerankModel: o.RerankModel,
	})
	timings["retrieval"] = time.Since(t0).Milliseconds()

	if len(merged) == 0 {
		resp := honestNoContextResponse(analysis.QueryType)
		resp.DurationMs = time.Since(start).Milliseconds()
		if opts.Explain {
			resp.Traces = &Traces{QueryAnalysis: analysis, TimingsMillis: timings}
		}
		return resp, nil
	}

	codeResults, defRefResults, vaultResults, threadResults := partitionBySourceType(merged)

	var repoMapText string
	if opts.IncludeRepoMap && o.RepoMap != nil {
		t0 = time.Now()
		budget := maxContextTokens * 10 / 100
		text, err := o.RepoMap.RepoMapSlice(ctx, o.Project, budget)
		if err == nil {
			repoMapText = text
		}
		timings["repo_map"] = time.Since(t0).Milliseconds()
	}

	t0 = time.Now()
	contextBudget := maxContextTokens
	if conversationContext != "" {
		contextBudget -= maxContextTokens / 4
	}
	asm := contextasm.Assemble(contextasm.Input{
		CodeResults:   codeResults,
		DefRefResults: defRefResults,
		VaultResults:  vaultResults,
		ThreadResults: threadResults,
		RepoMapText:   repoMapText,
		TokenBudget:   contextBudget,
		QueryType:     analysis.QueryType,
	})
	timings["context_assembly"] = time.Since(t0).Milliseconds()

	finalContext := asm.Context
	if conversationContext != "" {
		finalContext = fmt.Sprintf("# Previous Conversation\n\n%s\n\n# Current Context\n\n%s", conversationContext, asm.Context)
	}

	t0 = time.Now()
	prompt := promptbuilder.BuildSynthesisPrompt(question, finalContext, analysis.QueryType, true)
	answer, tokensUsed, err := o.synthesize(ctx, prompt)
	timings["synthesis"] = time.Since(t0).Milliseconds()
	if err != nil {
		answer = "Error: " + err.Error()
		tokensUsed = 0
	}
	citations := promptbuilder.ExtractCitationsFromResponse(answer)

	if conv != nil {
		_ = o.Conversations.LogExchange(ctx, conv, "ask_oracle", question, map[string]any{"answer": answer}, true)
	}

	sources := merged
	if len(sources) > 10 {
		sources = sources[:10]
	}

	resp := Response{
		Answer:       answer,
		Sources:      sources,
		RepoMapSlice: repoMapText,
		QueryType:    analysis.QueryType,
		Model:        o.SynthesisModel,
		TokensUsed:   tokensUsed,
		CostCents:    estimateCostCents(tokensUsed),
		DurationMs:   time.Since(start).Milliseconds(),
	}
	if err != nil {
		resp.Model = "none"
	}

	if opts.Explain {
		convID := ""
		if conv != nil {
			convID = conv.ID
		}
		resp.Traces = &Traces{
			QueryAnalysis:  analysis,
			PerSource:      perSourceStats(merged),
			ContextStats:   asm.Stats,
			TimingsMillis:  timings,
			ConversationID: convID,
			Citations:      citations,
		}
	}

	return resp, nil
}

func (o *Orchestrator) buildRetrieverList(sources []string) []retrieval.Retriever {
	includeCode := len(sources) == 0
	includeVault := len(sources) == 0
	includeThreads := len(sources) == 0
	for _, s := range sources {
		switch s {
		case SourceCode:
			includeCode = true
		case SourceVault:
			includeVault = true
		case SourceThreads:
			includeThreads = true
		}
	}

	var out []retrieval.Retriever
	if includeCode {
		for _, r := range []retrieval.Retriever{o.Retrievers.Vector, o.Retrievers.BM25, o.Retrievers.Graph} {
			if r != nil {
				out = append(out, r)
			}
		}
	}
	if includeVault && o.Retrievers.Vault != nil {
		out = append(out, o.Retrievers.Vault)
	}
	if includeThreads && o.Retrievers.Thread != nil {
		out = append(out, o.Retrievers.Thread)
	}
	return out
}

func (o *Orchestrator) synthesize(ctx context.Context, prompt string) (string, int, error) {
	if o.LLM == nil || !o.LLM.Available() {
		return "", 0, fmt.Errorf("no chat API key configured")
	}
	result, err := o.LLM.Complete(ctx, o.SynthesisModel, []llmclient.ChatMessage{
		{Role: "user", Content: prompt},
	}, synthesisTemperature, synthesisMaxTokens, synthesisTimeout)
	if err != nil {
		return "", 0, err
	}
	return result.Content, result.TotalTokens, nil
}

func partitionBySourceType(results []retrieval.Result) (code, defRef, vault, thread []retrieval.Result) {
	for _, r := range results {
		switch r.SourceType {
		case retrieval.SourceCode:
			code = append(code, r)
		case retrieval.SourceDefinition, retrieval.SourceReference:
			defRef = append(defRef, r)
		case retrieval.SourceVault:
			vault = append(vault, r)
		case retrieval.SourceThread:
			thread = append(thread, r)
		}
	}
	return
}

func perSourceStats(results []retrieval.Result) map[string]SourceStats {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, r := range results {
		key := string(r.SourceType)
		sums[key] += r.Score
		counts[key]++
	}
	out := make(map[string]SourceStats, len(counts))
	for key, count := range counts {
		out[key] = SourceStats{Count: count, MeanScore: sums[key] / float64(count)}
	}
	return out
}

func honestNoContextResponse(qt querytype.Type) Response {
	return Response{
		Answer:     "I could not find any relevant information in the index for this question. Try rephrasing, or check that the project has been indexed.",
		Model:      "none",
		QueryType:  qt,
		TokensUsed: 0,
		CostCents:  0,
	}
}

func estimateCostCents(tokensUsed int) float64 {
	return float64(tokensUsed) / 1000 * costPerKToken * centsPerUSD
}
