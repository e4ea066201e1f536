// Package codegraph builds the code reference graph (CodeNode/CodeEdge
// lists) from a per-file declaration extract. The actual source parse
// (tree-sitter) is an external collaborator; this package's input is the
// already-walked declaration/import/call/inherit facts a parser would
// hand back, one ParsedFile per source file.
package codegraph

import (
	"strings"

	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

// Declaration is one class/function/method found in a file.
type Declaration struct {
	Kind           vaultmodel.CodeNodeKind
	Name           string
	EnclosingClass string // empty for top-level declarations
	Signature      string
	Line           int
	Docstring      string
}

// Import is one import statement; Target is the imported module's
// qualified name.
type Import struct {
	Target string
	Line   int
}

// Call is one call expression. From is the qualified name of the
// enclosing declaration, or "" for a module-level call.
type Call struct {
	From   string
	Target string
	Line   int
}

// Inherit is one superclass reference. From is the qualified name of the
// subclass.
type Inherit struct {
	From   string
	Target string
	Line   int
}

// ParsedFile is one file's declaration-level facts.
type ParsedFile struct {
	Path         string
	Language     string
	Declarations []Declaration
	Imports      []Import
	Calls        []Call
	Inherits     []Inherit
}

// ModuleQualifiedName drops the file extension and replaces path
// separators with dots, e.g. "src/auth/login.py" -> "src.auth.login".
func ModuleQualifiedName(path string) string {
	trimmed := path
	if idx := strings.LastIndex(trimmed, "."); idx > strings.LastIndexAny(trimmed, "/\\") {
		trimmed = trimmed[:idx]
	}
	trimmed = strings.ReplaceAll(trimmed, "\\", "/")
	return strings.ReplaceAll(trimmed, "/", ".")
}

func qualifiedDeclName(module string, d Declaration) string {
	if d.EnclosingClass != "" {
		return module + "." + d.EnclosingClass + "." + d.Name
	}
	return module + "." + d.Name
}

// Build converts every file's declaration/import/call/inherit facts into
// flat CodeNode and CodeEdge lists scoped to project.
func Build(project string, files []ParsedFile) ([]vaultmodel.CodeNode, []vaultmodel.CodeEdge) {
	var nodes []vaultmodel.CodeNode
	var edges []vaultmodel.CodeEdge

	for _, f := range files {
		module := ModuleQualifiedName(f.Path)

		for _, d := range f.Declarations {
			qid := qualifiedDeclName(module, d)
			node := vaultmodel.CodeNode{
				QualifiedID: qid,
				ProjectID:   project,
				File:        f.Path,
				Kind:        d.Kind,
				Name:        d.Name,
			}
			if d.Signature != "" {
				sig := d.Signature
				node.Signature = &sig
			}
			if d.Docstring != "" {
				doc := d.Docstring
				node.Docstring = &doc
			}
			if d.Line != 0 {
				line := d.Line
				node.Line = &line
			}
			nodes = append(nodes, node)
		}

		for _, imp := range f.Imports {
			line := imp.Line
			edges = append(edges, vaultmodel.CodeEdge{
				ProjectID: project,
				SourceID:  module,
				TargetID:  imp.Target,
				Kind:      vaultmodel.EdgeImports,
				Line:      &line,
				Count:     1,
			})
		}
		for _, c := range f.Calls {
			from := c.From
			if from == "" {
				from = module
			}
			line := c.Line
			edges = append(edges, vaultmodel.CodeEdge{
				ProjectID: project,
				SourceID:  from,
				TargetID:  c.Target,
				Kind:      vaultmodel.EdgeCalls,
				Line:      &line,
				Count:     1,
			})
		}
		for _, inh := range f.Inherits {
			from := inh.From
			if from == "" {
				from = module
			}
			line := inh.Line
			edges = append(edges, vaultmodel.CodeEdge{
				ProjectID: project,
				SourceID:  from,
				TargetID:  inh.Target,
				Kind:      vaultmodel.EdgeInherits,
				Line:      &line,
				Count:     1,
			})
		}
	}

	return nodes, edges
}
