package promptbuilder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultlabs/vlt/internal/querytype"
)

func TestBuildSynthesisPrompt_ContainsAllSections(t *testing.T) {
	prompt := BuildSynthesisPrompt("How does auth work?", "## Code\n...", querytype.Conceptual, true)
	require.Contains(t, prompt, "## Question")
	require.Contains(t, prompt, "How does auth work?")
	require.Contains(t, prompt, "## Context")
	require.Contains(t, prompt, "[file.py:42]")
	require.Contains(t, prompt, "## Answer")
}

func TestBuildSynthesisPrompt_OmitsCitationInstructionWhenDisabled(t *testing.T) {
	prompt := BuildSynthesisPrompt("q", "c", querytype.Unknown, false)
	require.NotContains(t, prompt, "Every claim must carry a citation")
}

func TestBuildSynthesisPrompt_UsesQueryTypeInstruction(t *testing.T) {
	prompt := BuildSynthesisPrompt("q", "c", querytype.Definition, true)
	require.Contains(t, prompt, "definition lookup")
}

func TestExtractCitationsFromResponse_FiltersAndDedupes(t *testing.T) {
	text := "See [auth.py:42] and [auth.py:42] again, also [docs/x.md] and [not a citation] and [thread:abc#3]."
	out := ExtractCitationsFromResponse(text)
	require.Equal(t, []string{"auth.py:42", "docs/x.md", "thread:abc#3"}, out)
}

func TestExtractCitationsFromResponse_NoMatches(t *testing.T) {
	out := ExtractCitationsFromResponse("no citations here")
	require.Empty(t, out)
}
