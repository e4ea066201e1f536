package retrieval

import (
	"context"
	"fmt"
	"regexp"

	"github.com/vaultlabs/vlt/internal/store"
	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

var (
	definitionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)where is (\w+) defined`),
		regexp.MustCompile(`(?i)definition of (\w+)`),
		regexp.MustCompile(`(?i)find (\w+) definition`),
		regexp.MustCompile(`(?i)show me (\w+) definition`),
		regexp.MustCompile(`(?i)what is (\w+)`),
	}
	referencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)where is (\w+) used`),
		regexp.MustCompile(`(?i)what calls (\w+)`),
		regexp.MustCompile(`(?i)who calls (\w+)`),
		regexp.MustCompile(`(?i)references to (\w+)`),
		regexp.MustCompile(`(?i)usages of (\w+)`),
		regexp.MustCompile(`(?i)find (\w+) references`),
	}
)

// classifyGraphQuery recognises a structural query and extracts its target
// symbol. ok is false when the query matches neither shape.
func classifyGraphQuery(query string) (kind SourceType, symbol string, ok bool) {
	for _, re := range definitionPatterns {
		if m := re.FindStringSubmatch(query); m != nil {
			return SourceDefinition, m[1], true
		}
	}
	for _, re := range referencePatterns {
		if m := re.FindStringSubmatch(query); m != nil {
			return SourceReference, m[1], true
		}
	}
	return "", "", false
}

// GraphRetriever answers structural "where is X defined" / "where is X
// used" queries via the ctags-ingested symbol index and the code graph.
type GraphRetriever struct {
	Store   *store.Store
	Project string
}

func (r *GraphRetriever) Name() string { return "graph" }

func (r *GraphRetriever) Available(ctx context.Context) bool { return true }

func (r *GraphRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Result, error) {
	kind, symbol, ok := classifyGraphQuery(query)
	if !ok {
		return nil, nil
	}

	switch kind {
	case SourceDefinition:
		return r.retrieveDefinition(ctx, symbol)
	case SourceReference:
		return r.retrieveReferences(ctx, symbol, limit)
	default:
		return nil, nil
	}
}

func (r *GraphRetriever) retrieveDefinition(ctx context.Context, symbol string) ([]Result, error) {
	symbols, err := r.Store.SymbolsByName(ctx, r.Project, symbol)
	if err != nil {
		return nil, wrapQueryError(r.Name(), fmt.Errorf("symbols by name: %w", err))
	}
	if len(symbols) > 0 {
		s := symbols[0]
		return []Result{{
			Content:    renderSymbolContent(s),
			SourceType: SourceDefinition,
			SourcePath: fmt.Sprintf("%s:%d", s.File, s.Line),
			Method:     MethodCtags,
			Score:      1.0,
			Metadata:   map[string]any{"symbol": s.Name, "kind": s.Kind},
		}}, nil
	}

	node, found, err := r.Store.CodeNodeByName(ctx, r.Project, symbol)
	if err != nil {
		return nil, wrapQueryError(r.Name(), fmt.Errorf("code node by name: %w", err))
	}
	if !found {
		return nil, nil
	}
	line := 0
	if node.Line != nil {
		line = *node.Line
	}
	return []Result{{
		Content:    renderCodeNodeContent(node),
		SourceType: SourceDefinition,
		SourcePath: fmt.Sprintf("%s:%d", node.File, line),
		Method:     MethodGraph,
		Score:      1.0,
		Metadata:   map[string]any{"symbol": node.Name, "qualified_id": node.QualifiedID},
	}}, nil
}

func (r *GraphRetriever) retrieveReferences(ctx context.Context, symbol string, limit int) ([]Result, error) {
	edges, err := r.Store.EdgesByTarget(ctx, r.Project, symbol, limit)
	if err != nil {
		return nil, wrapQueryError(r.Name(), fmt.Errorf("edges by target: %w", err))
	}
	out := make([]Result, 0, len(edges))
	for _, e := range edges {
		line := 0
		if e.Line != nil {
			line = *e.Line
		}
		out = append(out, Result{
			Content:    fmt.Sprintf("%s references %s (%s)", e.SourceID, e.TargetID, e.Kind),
			SourceType: SourceReference,
			SourcePath: fmt.Sprintf("%s:%d", e.SourceID, line),
			Method:     MethodGraph,
			Score:      1.0,
			Metadata:   map[string]any{"source_id": e.SourceID, "target_id": e.TargetID, "kind": e.Kind},
		})
	}
	return out, nil
}

func renderSymbolContent(s vaultmodel.SymbolDefinition) string {
	content := fmt.Sprintf("%s `%s` defined at %s:%d", s.Kind, s.Name, s.File, s.Line)
	if s.Signature != nil && *s.Signature != "" {
		content += "\nSignature: " + *s.Signature
	}
	return content
}

func renderCodeNodeContent(n vaultmodel.CodeNode) string {
	content := fmt.Sprintf("%s `%s` in %s", n.Kind, n.Name, n.File)
	if n.Signature != nil && *n.Signature != "" {
		content += "\nSignature: " + *n.Signature
	}
	if n.Docstring != nil && *n.Docstring != "" {
		content += "\n" + *n.Docstring
	}
	return content
}
