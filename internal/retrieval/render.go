package retrieval

import (
	"strings"

	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

// renderCodeContent composes a chunk's content with signature, docstring,
// imports, and class context each under a markdown subheading, followed by
// the body — the shape the BM25 and vector retrievers both return.
func renderCodeContent(c vaultmodel.CodeChunk) string {
	var b strings.Builder
	if c.Signature != nil && *c.Signature != "" {
		b.WriteString("#### Signature\n")
		b.WriteString(*c.Signature)
		b.WriteString("\n\n")
	}
	if c.Docstring != nil && *c.Docstring != "" {
		b.WriteString("#### Docstring\n")
		b.WriteString(*c.Docstring)
		b.WriteString("\n\n")
	}
	if c.Imports != nil && *c.Imports != "" {
		b.WriteString("#### Imports\n")
		b.WriteString(*c.Imports)
		b.WriteString("\n\n")
	}
	if c.ClassContext != nil && *c.ClassContext != "" {
		b.WriteString("#### Class\n")
		b.WriteString(*c.ClassContext)
		b.WriteString("\n\n")
	}
	b.WriteString("#### Body\n")
	b.WriteString(c.Body)
	return b.String()
}
