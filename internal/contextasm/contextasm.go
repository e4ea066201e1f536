// Package contextasm allocates a token budget across retrieval result
// sections and renders them into one markdown context block with
// per-section citation headers.
package contextasm

import (
	"fmt"
	"strings"
	"time"

	"github.com/vaultlabs/vlt/internal/querytype"
	"github.com/vaultlabs/vlt/internal/retrieval"
	"github.com/vaultlabs/vlt/internal/tokenest"
)

const defaultBudget = 16000

// Input bundles the retrieval results and policy the assembler allocates
// a budget across.
type Input struct {
	CodeResults   []retrieval.Result // source type "code"
	DefRefResults []retrieval.Result // source type "definition" or "reference"
	VaultResults  []retrieval.Result
	ThreadResults []retrieval.Result
	RepoMapText   string
	TokenBudget   int // default 16000 when <= 0
	QueryType     querytype.Type
}

// SectionStats is the per-section entry of the returned statistics bag.
type SectionStats struct {
	Text            string
	TokenCount      int
	SourcesIncluded int
	SourcesExcluded int
}

// Output is the assembled context plus its statistics bag, keyed by
// section name.
type Output struct {
	Context string
	Stats   map[string]SectionStats
}

// Assemble applies the budget-allocation waterfall and renders every
// included result under its section's markdown heading.
func Assemble(in Input) Output {
	budget := in.TokenBudget
	if budget <= 0 {
		budget = defaultBudget
	}

	repoMapBudget := budget * 10 / 100
	remaining := budget - repoMapBudget

	seen := make(map[string]bool)
	stats := make(map[string]SectionStats)
	var sections []string

	if in.QueryType == querytype.Definition || in.QueryType == querytype.References {
		defRefBudget := remaining * 15 / 100
		text, used, stat := fillSection("Definitions and References", in.DefRefResults, defRefBudget, seen, renderDefRef)
		remaining -= used
		if stat.SourcesIncluded > 0 {
			sections = append(sections, text)
		}
		stats["definitions_and_references"] = stat
	}

	codeBudget := remaining * 60 / 100
	codeText, used, codeStat := fillSection("Code", in.CodeResults, codeBudget, seen, renderCode)
	remaining -= used
	if codeStat.SourcesIncluded > 0 {
		sections = append(sections, codeText)
	}
	stats["code"] = codeStat

	vaultBudget := remaining * 20 / 100
	vaultText, used, vaultStat := fillSection("Vault Notes", in.VaultResults, vaultBudget, seen, renderVault)
	remaining -= used
	if vaultStat.SourcesIncluded > 0 {
		sections = append(sections, vaultText)
	}
	stats["vault"] = vaultStat

	if remaining > 500 {
		threadText, used, threadStat := fillSection("Related Threads", in.ThreadResults, remaining, seen, renderThread)
		remaining -= used
		if threadStat.SourcesIncluded > 0 {
			sections = append(sections, threadText)
		}
		stats["threads"] = threadStat
	}

	if in.RepoMapText != "" {
		repoMapText := truncateRepoMap(in.RepoMapText, repoMapBudget)
		sections = append([]string{"## Repository Map\n\n" + repoMapText}, sections...)
		stats["repo_map"] = SectionStats{Text: repoMapText, TokenCount: tokenest.Estimate(repoMapText), SourcesIncluded: 1}
	}

	return Output{Context: strings.Join(sections, "\n\n"), Stats: stats}
}

type renderFunc func(retrieval.Result) string

func fillSection(heading string, results []retrieval.Result, budget int, seen map[string]bool, render renderFunc) (string, int, SectionStats) {
	var b strings.Builder
	used := 0
	included := 0
	excluded := 0

	for _, r := range results {
		if seen[r.SourcePath] {
			excluded++
			continue
		}
		rendered := render(r)
		cost := tokenest.Estimate(rendered)
		if used+cost > budget {
			continue
		}
		seen[r.SourcePath] = true
		b.WriteString(rendered)
		b.WriteString("\n\n")
		used += cost
		included++
	}

	if included == 0 {
		return "", 0, SectionStats{SourcesIncluded: 0, SourcesExcluded: excluded}
	}

	text := fmt.Sprintf("## %s\n\n%s", heading, strings.TrimRight(b.String(), "\n"))
	return text, used, SectionStats{Text: text, TokenCount: used, SourcesIncluded: included, SourcesExcluded: excluded}
}

func scoreSuffix(score float64) string {
	if score >= 0.80 {
		return fmt.Sprintf(" (score: %.2f)", score)
	}
	return ""
}

func renderCode(r retrieval.Result) string {
	qualifiedName, _ := r.Metadata["qualified_name"].(string)
	lang, _ := r.Metadata["language"].(string)

	header := fmt.Sprintf("### [%s]%s", r.SourcePath, scoreSuffix(r.Score))
	if qualifiedName != "" {
		header += " - " + qualifiedName
	}
	return fmt.Sprintf("%s\n```%s\n%s\n```", header, lang, r.Content)
}

func renderVault(r retrieval.Result) string {
	title, _ := r.Metadata["title"].(string)
	header := fmt.Sprintf("### [%s]%s", r.SourcePath, scoreSuffix(r.Score))
	if title != "" {
		header += " - " + title
	}
	return fmt.Sprintf("%s\n%s", header, r.Content)
}

func renderThread(r retrieval.Result) string {
	author, _ := r.Metadata["author"].(string)
	header := fmt.Sprintf("### [%s]%s", r.SourcePath, scoreSuffix(r.Score))
	if author != "" {
		date := ""
		if ts, ok := r.Metadata["timestamp"].(time.Time); ok && !ts.IsZero() {
			date = ", " + ts.Format("2006-01-02")
		}
		header += fmt.Sprintf(" (by %s%s)", author, date)
	}
	return fmt.Sprintf("%s\n%s", header, r.Content)
}

func renderDefRef(r retrieval.Result) string {
	return fmt.Sprintf("### [%s]\n%s", r.SourcePath, r.Content)
}

// truncateRepoMap cuts the repo-map text to its reserved token budget,
// breaking at the last newline if that falls within the final 20% of the
// budget, then appends a truncation marker.
func truncateRepoMap(text string, budget int) string {
	if tokenest.Estimate(text) <= budget {
		return text
	}
	maxChars := tokenest.Budget(budget)
	if maxChars >= len(text) {
		return text
	}
	cut := text[:maxChars]

	tailStart := maxChars - maxChars*20/100
	if idx := strings.LastIndexByte(cut, '\n'); idx >= 0 && idx >= tailStart {
		cut = cut[:idx]
	}
	return cut + "\n\n[... truncated for token budget]"
}
