// Package queryanalyzer classifies a natural-language question into one of
// a fixed set of query types using plain keyword matching and identifier
// extraction — no LLM call, fully deterministic.
package queryanalyzer

import (
	"regexp"
	"strings"

	"github.com/vaultlabs/vlt/internal/querytype"
)

var definitionKeywords = []string{
	"where is", "defined", "definition of", "find", "what is", "show me",
}

var referenceKeywords = []string{
	"where is", "used", "calls", "who calls", "references to", "usages of", "callers of",
}

var conceptualKeywords = []string{
	"how does", "why", "explain", "what is the purpose", "what does", "describe",
}

var behaviouralKeywords = []string{
	"what happens when", "what if", "walk me through", "trace", "step through", "flow",
}

// Analysis is the deterministic classification result.
type Analysis struct {
	QueryType  querytype.Type
	Confidence float64
	Symbols    []string
}

// Analyze classifies query and extracts candidate symbol names.
func Analyze(query string) Analysis {
	lower := strings.ToLower(query)

	scores := map[querytype.Type]int{
		querytype.Definition:  countHits(lower, definitionKeywords),
		querytype.References:  countHits(lower, referenceKeywords),
		querytype.Conceptual:  countHits(lower, conceptualKeywords),
		querytype.Behavioural: countHits(lower, behaviouralKeywords),
	}

	// "references" keywords are a superset-overlapping set with "definition"
	// ("where is X used" vs "where is X defined"); a literal "used"/"calls"
	// hit should win over the shared "where is" prefix.
	if scores[querytype.References] > 0 && (strings.Contains(lower, "used") || strings.Contains(lower, "calls") || strings.Contains(lower, "references") || strings.Contains(lower, "usages")) {
		scores[querytype.Definition] = 0
	}

	best := querytype.Unknown
	bestScore := 0
	total := 0
	// Fixed iteration order: on equal scores the earlier type wins.
	for _, qt := range []querytype.Type{querytype.Definition, querytype.References, querytype.Conceptual, querytype.Behavioural} {
		s := scores[qt]
		total += s
		if s > bestScore {
			bestScore = s
			best = qt
		}
	}

	confidence := 0.0
	if total > 0 {
		confidence = float64(bestScore) / float64(total)
	}
	if best == querytype.Unknown {
		confidence = 0.0
	}

	return Analysis{
		QueryType:  best,
		Confidence: confidence,
		Symbols:    extractSymbols(query),
	}
}

func countHits(lower string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			n++
		}
	}
	return n
}

var (
	camelCasePattern = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*\b`)
	snakeCasePattern = regexp.MustCompile(`\b[a-z][a-z0-9]*(?:_[a-z0-9]+)+\b`)
)

// extractSymbols pulls capitalized identifiers (likely class names) and
// snake_case identifiers (likely function/variable names) out of query,
// deduplicating while preserving first-seen order.
func extractSymbols(query string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range camelCasePattern.FindAllString(query, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	for _, m := range snakeCasePattern.FindAllString(query, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
