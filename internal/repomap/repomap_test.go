package repomap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

func TestPageRank_Empty(t *testing.T) {
	require.Equal(t, map[string]float64{}, PageRank(nil, nil))
}

func TestPageRank_Singleton(t *testing.T) {
	out := PageRank([]string{"a"}, nil)
	require.Equal(t, map[string]float64{"a": 1.0}, out)
}

func TestPageRank_ConvergesAndNormalizes(t *testing.T) {
	edges := []vaultmodel.CodeEdge{
		{SourceID: "a", TargetID: "b", Kind: vaultmodel.EdgeCalls},
		{SourceID: "c", TargetID: "b", Kind: vaultmodel.EdgeCalls},
		{SourceID: "b", TargetID: "a", Kind: vaultmodel.EdgeCalls},
	}
	out := PageRank([]string{"a", "b", "c"}, edges)

	var sum float64
	for _, v := range out {
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-6)
	require.Greater(t, out["b"], out["c"])
}

func TestFilterSymbolsByScope(t *testing.T) {
	symbols := []vaultmodel.CodeNode{
		{QualifiedID: "a", File: "src/auth/login.py"},
		{QualifiedID: "b", File: "src/db/conn.py"},
	}
	filtered := FilterSymbolsByScope(symbols, "src/auth")
	require.Len(t, filtered, 1)
	require.Equal(t, "a", filtered[0].QualifiedID)
}

func TestFilterSymbolsByScope_EmptyPrefixReturnsAll(t *testing.T) {
	symbols := []vaultmodel.CodeNode{{QualifiedID: "a"}, {QualifiedID: "b"}}
	require.Len(t, FilterSymbolsByScope(symbols, ""), 2)
}

func line(n int) *int { return &n }
func str(s string) *string { return &s }

func TestRender_GroupsByFileOrderedByCentrality(t *testing.T) {
	symbols := []vaultmodel.CodeNode{
		{QualifiedID: "pkg.Low", File: "pkg/low.go", Name: "Low", Line: line(1)},
		{QualifiedID: "pkg.High", File: "pkg/high.go", Name: "High", Line: line(1)},
	}
	centrality := map[string]float64{"pkg.Low": 0.1, "pkg.High": 0.9}

	res := Render(symbols, centrality, RenderOptions{TokenBudget: 10000})
	require.Equal(t, 2, res.SymbolsIncluded)
	require.Equal(t, 2, res.FilesIncluded)

	highIdx := indexOf(res.Text, "pkg/high.go")
	lowIdx := indexOf(res.Text, "pkg/low.go")
	require.GreaterOrEqual(t, highIdx, 0)
	require.GreaterOrEqual(t, lowIdx, 0)
	require.Less(t, highIdx, lowIdx)
}

func TestRender_IncludesSignatureAndDocstringWhenRequested(t *testing.T) {
	symbols := []vaultmodel.CodeNode{
		{
			QualifiedID: "pkg.Foo",
			File:        "pkg/foo.go",
			Name:        "Foo",
			Signature:   str("(x int) error"),
			Docstring:   str("does the foo thing"),
			Line:        line(3),
		},
	}
	res := Render(symbols, map[string]float64{"pkg.Foo": 1.0}, RenderOptions{
		IncludeSignatures: true,
		IncludeDocstrings: true,
		TokenBudget:       10000,
	})
	require.Contains(t, res.Text, "(x int) error")
	require.Contains(t, res.Text, "does the foo thing")
}

func TestRender_RespectsTokenBudget(t *testing.T) {
	var symbols []vaultmodel.CodeNode
	centrality := map[string]float64{}
	for i := 0; i < 50; i++ {
		id := "pkg.Sym"
		symbols = append(symbols, vaultmodel.CodeNode{
			QualifiedID: id + itoa(i),
			File:        "pkg/file.go",
			Name:        "VeryLongSymbolNameNumber" + itoa(i),
			Line:        line(i),
		})
		centrality[id+itoa(i)] = 1.0 / float64(i+1)
	}
	res := Render(symbols, centrality, RenderOptions{TokenBudget: 20})
	require.Less(t, res.SymbolsIncluded, res.SymbolsTotal)
	require.Equal(t, 50, res.SymbolsTotal)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}
