// Package repomap computes symbol centrality over the code graph and
// renders a token-budgeted, file-grouped repository overview.
package repomap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vaultlabs/vlt/internal/tokenest"
	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

const (
	damping       = 0.85
	maxIterations = 50
	convergence   = 1e-6
)

// PageRank computes iterative PageRank over a directed graph of qualified
// symbol ids and edges, normalised so scores sum to approximately 1.0.
// Returns {} for an empty graph, {node: 1.0} for a singleton.
func PageRank(nodeIDs []string, edges []vaultmodel.CodeEdge) map[string]float64 {
	n := len(nodeIDs)
	if n == 0 {
		return map[string]float64{}
	}
	if n == 1 {
		return map[string]float64{nodeIDs[0]: 1.0}
	}

	index := make(map[string]int, n)
	for i, id := range nodeIDs {
		index[id] = i
	}

	outLinks := make([][]int, n)
	outDegree := make([]int, n)
	for _, e := range edges {
		si, sok := index[e.SourceID]
		ti, tok := index[e.TargetID]
		if !sok || !tok || si == ti {
			continue
		}
		outLinks[ti] = append(outLinks[ti], si) // inverse: who points INTO ti
		outDegree[si]++
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0 / float64(n)
	}

	base := (1 - damping) / float64(n)
	for iter := 0; iter < maxIterations; iter++ {
		next := make([]float64, n)
		for i := range next {
			next[i] = base
		}
		for ti := range nodeIDs {
			for _, si := range outLinks[ti] {
				if outDegree[si] == 0 {
					continue
				}
				next[ti] += damping * scores[si] / float64(outDegree[si])
			}
		}

		maxDelta := 0.0
		for i := range next {
			d := next[i] - scores[i]
			if d < 0 {
				d = -d
			}
			if d > maxDelta {
				maxDelta = d
			}
		}
		scores = next
		if maxDelta < convergence {
			break
		}
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	out := make(map[string]float64, n)
	for i, id := range nodeIDs {
		if sum > 0 {
			out[id] = scores[i] / sum
		} else {
			out[id] = 0
		}
	}
	return out
}

// FilterSymbolsByScope keeps only symbols whose file begins with prefix.
func FilterSymbolsByScope(symbols []vaultmodel.CodeNode, prefix string) []vaultmodel.CodeNode {
	if prefix == "" {
		return symbols
	}
	var out []vaultmodel.CodeNode
	for _, s := range symbols {
		if strings.HasPrefix(s.File, prefix) {
			out = append(out, s)
		}
	}
	return out
}

// RenderOptions controls repo-map rendering detail.
type RenderOptions struct {
	IncludeSignatures bool
	IncludeDocstrings bool
	TokenBudget       int
}

// RenderResult is the rendered text plus fill statistics.
type RenderResult struct {
	Text            string
	SymbolsIncluded int
	SymbolsTotal    int
	FilesIncluded   int
}

// Render orders symbols by descending centrality (tie-break file then
// line), groups them by file under a `### <path>` heading, and greedily
// fills opts.TokenBudget using the 4-chars-per-token estimate.
func Render(symbols []vaultmodel.CodeNode, centrality map[string]float64, opts RenderOptions) RenderResult {
	ordered := make([]vaultmodel.CodeNode, len(symbols))
	copy(ordered, symbols)
	sort.SliceStable(ordered, func(i, j int) bool {
		ci := centrality[ordered[i].QualifiedID]
		cj := centrality[ordered[j].QualifiedID]
		if ci != cj {
			return ci > cj
		}
		if ordered[i].File != ordered[j].File {
			return ordered[i].File < ordered[j].File
		}
		li, lj := 0, 0
		if ordered[i].Line != nil {
			li = *ordered[i].Line
		}
		if ordered[j].Line != nil {
			lj = *ordered[j].Line
		}
		return li < lj
	})

	byFile := make(map[string][]vaultmodel.CodeNode)
	var fileOrder []string
	for _, s := range ordered {
		if _, ok := byFile[s.File]; !ok {
			fileOrder = append(fileOrder, s.File)
		}
		byFile[s.File] = append(byFile[s.File], s)
	}

	var b strings.Builder
	used := 0
	included := 0
	includedFiles := make(map[string]bool)

	for _, file := range fileOrder {
		header := fmt.Sprintf("### %s\n", file)
		headerCost := tokenest.Estimate(header)
		wroteHeader := false

		for _, s := range byFile[file] {
			line := renderSymbolLine(s, opts)
			cost := tokenest.Estimate(line)
			extra := cost
			if !wroteHeader {
				extra += headerCost
			}
			if opts.TokenBudget > 0 && used+extra > opts.TokenBudget {
				continue
			}
			if !wroteHeader {
				b.WriteString(header)
				used += headerCost
				wroteHeader = true
				includedFiles[file] = true
			}
			b.WriteString(line)
			used += cost
			included++
		}
		if wroteHeader {
			b.WriteString("\n")
		}
	}

	return RenderResult{
		Text:            strings.TrimRight(b.String(), "\n"),
		SymbolsIncluded: included,
		SymbolsTotal:    len(symbols),
		FilesIncluded:   len(includedFiles),
	}
}

func renderSymbolLine(s vaultmodel.CodeNode, opts RenderOptions) string {
	var b strings.Builder
	b.WriteString(s.Name)
	if opts.IncludeSignatures && s.Signature != nil && *s.Signature != "" {
		b.WriteString(*s.Signature)
	}
	b.WriteString("\n")
	if opts.IncludeDocstrings && s.Docstring != nil && *s.Docstring != "" {
		b.WriteString("    ")
		b.WriteString(*s.Docstring)
		b.WriteString("\n")
	}
	return b.String()
}
