// Package promptbuilder composes the final synthesis prompt handed to the
// chat model and extracts citations back out of its response.
package promptbuilder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vaultlabs/vlt/internal/querytype"
)

var systemInstructions = map[querytype.Type]string{
	querytype.Definition: "You are a code intelligence assistant answering a definition lookup. " +
		"State exactly where the symbol is defined and what it is.",
	querytype.References: "You are a code intelligence assistant answering a usage lookup. " +
		"Enumerate the call sites and references found in the context.",
	querytype.Conceptual: "You are a code intelligence assistant explaining a concept. " +
		"Synthesise an explanation grounded strictly in the provided context.",
	querytype.Behavioural: "You are a code intelligence assistant explaining runtime behavior. " +
		"Trace the relevant control flow using only the provided context.",
	querytype.Unknown: "You are a code intelligence assistant. Answer using only the provided context.",
}

const citationInstruction = "Every claim must carry a citation in one of these formats: " +
	"[file.py:42], [docs/x.md], or [thread:id#15]. " +
	"If the context does not cover part of the question, explicitly say so rather than guessing."

// BuildSynthesisPrompt assembles the system instruction, citation rule,
// question, context, and closing structure instructions into one prompt.
func BuildSynthesisPrompt(question, context string, qt querytype.Type, includeCitations bool) string {
	instruction, ok := systemInstructions[qt]
	if !ok {
		instruction = systemInstructions[querytype.Unknown]
	}

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n")
	if includeCitations {
		b.WriteString(citationInstruction)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "## Question\n\n%s\n\n", question)
	fmt.Fprintf(&b, "## Context\n\n%s\n\n", context)
	b.WriteString("Structure your answer as: a direct answer, supporting detail, examples where useful, " +
		"citations for every claim, and any caveats about missing coverage.\n\n")
	b.WriteString("## Answer\n")
	return b.String()
}

var citationPattern = regexp.MustCompile(`\[([^\]]+)\]`)

// ExtractCitationsFromResponse pulls bracketed citation-shaped captures out
// of a response, keeping only ones that look like a citation (containing
// ':', '/', or '#') and deduplicating while preserving first-seen order.
func ExtractCitationsFromResponse(text string) []string {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		capture := m[1]
		if !strings.ContainsAny(capture, ":/#") {
			continue
		}
		if seen[capture] {
			continue
		}
		seen[capture] = true
		out = append(out, capture)
	}
	return out
}
