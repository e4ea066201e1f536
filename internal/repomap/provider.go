package repomap

import (
	"context"
	"fmt"

	"github.com/vaultlabs/vlt/internal/tokenest"
	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

// GraphStore is the persistence surface the provider needs.
type GraphStore interface {
	CodeNodesByProject(ctx context.Context, project string) ([]vaultmodel.CodeNode, error)
	AllEdgesByProject(ctx context.Context, project string) ([]vaultmodel.CodeEdge, error)
	UpdateCentrality(ctx context.Context, project string, scores map[string]float64) error
	SaveRepoMap(ctx context.Context, m vaultmodel.RepoMap) error
}

// Provider computes centrality and renders a repo-map slice on demand,
// backed by the code graph tables. It implements the Oracle orchestrator's
// RepoMapProvider interface.
type Provider struct {
	Store             GraphStore
	IncludeSignatures bool
	IncludeDocstrings bool
}

// RepoMapSlice recomputes PageRank over the project's full code graph,
// persists the updated centrality scores, renders a token-budgeted slice,
// and records the render as a RepoMap row.
func (p *Provider) RepoMapSlice(ctx context.Context, project string, budget int) (string, error) {
	nodes, err := p.Store.CodeNodesByProject(ctx, project)
	if err != nil {
		return "", fmt.Errorf("load code nodes for %s: %w", project, err)
	}
	if len(nodes) == 0 {
		return "", nil
	}
	edges, err := p.Store.AllEdgesByProject(ctx, project)
	if err != nil {
		return "", fmt.Errorf("load code edges for %s: %w", project, err)
	}

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.QualifiedID
	}
	centrality := PageRank(ids, edges)
	if err := p.Store.UpdateCentrality(ctx, project, centrality); err != nil {
		return "", fmt.Errorf("update centrality for %s: %w", project, err)
	}

	result := Render(nodes, centrality, RenderOptions{
		IncludeSignatures: p.IncludeSignatures,
		IncludeDocstrings: p.IncludeDocstrings,
		TokenBudget:       budget,
	})

	_ = p.Store.SaveRepoMap(ctx, vaultmodel.RepoMap{
		ProjectID:       project,
		Text:            result.Text,
		TokenCount:      tokenest.Estimate(result.Text),
		BudgetUsed:      budget,
		FilesIncluded:   result.FilesIncluded,
		SymbolsIncluded: result.SymbolsIncluded,
		SymbolsTotal:    result.SymbolsTotal,
	})

	return result.Text, nil
}
