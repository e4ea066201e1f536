// Package ingest implements the in-scope remainder of per-file (re)indexing
// that the delta manager's commit step drives: turning a file's bytes into
// CodeChunks, CodeNodes, and SymbolDefinitions, embedding what it can, and
// saving the result. Two external collaborators are assumed, never
// fabricated: a tree-sitter parse (would sharpen chunk/graph boundaries to
// real AST nodes) and ctags tag generation (see internal/ctags's package
// doc) — both are treated as already-produced inputs, not reimplemented
// here. Without a tags loader a file degrades to one whole-file module
// chunk with no graph nodes, which is a correct, honest answer rather than
// invented structure.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/vaultlabs/vlt/internal/llmclient"
	"github.com/vaultlabs/vlt/internal/tokenest"
	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

const embedBatchSize = 32

// Store is the persistence surface one file index run needs. *store.Store
// satisfies it directly.
type Store interface {
	SaveChunks(ctx context.Context, project string, chunks []vaultmodel.CodeChunk) error
	SaveGraph(ctx context.Context, project string, nodes []vaultmodel.CodeNode, edges []vaultmodel.CodeEdge) error
	SaveSymbols(ctx context.Context, project string, symbols []vaultmodel.SymbolDefinition) error
}

// TagsLoader resolves the already-generated ctags symbols that fall within
// one file. A nil loader is valid: every file then indexes as a single
// module-kind chunk.
type TagsLoader func(ctx context.Context, project, path string) ([]vaultmodel.SymbolDefinition, error)

// FileIndexer re-derives one file's chunks, graph nodes, and symbols. It
// implements both internal/delta's and internal/syncdaemon's Indexer
// interfaces structurally.
type FileIndexer struct {
	Store      Store
	LLM        *llmclient.Client
	EmbedModel string
	Tags       TagsLoader
}

// IndexFile reads path, derives chunk and graph-node boundaries (from tags
// when available, else the whole file), embeds every chunk body when an
// embedding API is configured, and persists chunks, graph nodes, and
// symbols. The delta manager has already cleared the file's previous rows
// before calling this.
func (fi *FileIndexer) IndexFile(ctx context.Context, project, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	body := string(data)
	language := languageFromExtension(path)

	var symbols []vaultmodel.SymbolDefinition
	if fi.Tags != nil {
		symbols, err = fi.Tags(ctx, project, path)
		if err != nil {
			return fmt.Errorf("load tags for %s: %w", path, err)
		}
	}

	lines := strings.Split(body, "\n")
	chunks := chunksFromSymbols(project, path, lines, language, symbols)
	if err := fi.embed(ctx, chunks); err != nil {
		return fmt.Errorf("embed chunks for %s: %w", path, err)
	}
	if err := fi.Store.SaveChunks(ctx, project, chunks); err != nil {
		return fmt.Errorf("save chunks for %s: %w", path, err)
	}

	nodes := nodesFromSymbols(project, path, symbols)
	if err := fi.Store.SaveGraph(ctx, project, nodes, nil); err != nil {
		return fmt.Errorf("save graph for %s: %w", path, err)
	}

	if len(symbols) > 0 {
		if err := fi.Store.SaveSymbols(ctx, project, symbols); err != nil {
			return fmt.Errorf("save symbols for %s: %w", path, err)
		}
	}
	return nil
}

// embed fills in each chunk's Embedding in place, batching calls to the
// configured embedding model. A nil or unavailable client is not an error:
// chunks simply save without vectors and the BM25/graph retrievers still
// cover them.
func (fi *FileIndexer) embed(ctx context.Context, chunks []vaultmodel.CodeChunk) error {
	if fi.LLM == nil || !fi.LLM.Available() || len(chunks) == 0 {
		return nil
	}
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		inputs := make([]string, len(batch))
		for i, c := range batch {
			inputs[i] = c.Body
		}
		vectors, err := fi.LLM.Embed(ctx, fi.EmbedModel, inputs)
		if err != nil {
			return err
		}
		for i := range batch {
			chunks[start+i].Embedding = vectors[i]
		}
	}
	return nil
}

func chunksFromSymbols(project, path string, lines []string, language string, symbols []vaultmodel.SymbolDefinition) []vaultmodel.CodeChunk {
	if len(symbols) == 0 {
		return []vaultmodel.CodeChunk{{
			ID:            uuid.NewString(),
			ProjectID:     project,
			FilePath:      path,
			Kind:          vaultmodel.ChunkModule,
			ShortName:     filepath.Base(path),
			QualifiedName: path,
			Language:      language,
			StartLine:     1,
			EndLine:       len(lines),
			Body:          strings.Join(lines, "\n"),
			TokenCount:    tokenest.Estimate(strings.Join(lines, "\n")),
		}}
	}

	ordered := append([]vaultmodel.SymbolDefinition(nil), symbols...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Line < ordered[j].Line })

	chunks := make([]vaultmodel.CodeChunk, 0, len(ordered))
	for i, sym := range ordered {
		start := sym.Line
		end := len(lines)
		if i+1 < len(ordered) {
			end = ordered[i+1].Line - 1
		}
		if start < 1 {
			start = 1
		}
		if end > len(lines) {
			end = len(lines)
		}
		if end < start {
			end = start
		}
		chunkBody := strings.Join(lines[clampIndex(start-1, len(lines)):clampIndex(end, len(lines))], "\n")

		qualified := sym.Name
		var classContext *string
		if sym.Scope != nil {
			qualified = *sym.Scope + "." + sym.Name
			classContext = sym.Scope
		}

		chunks = append(chunks, vaultmodel.CodeChunk{
			ID:            uuid.NewString(),
			ProjectID:     project,
			FilePath:      path,
			Kind:          chunkKindFromSymbolKind(sym.Kind),
			ShortName:     sym.Name,
			QualifiedName: qualified,
			Language:      language,
			StartLine:     start,
			EndLine:       end,
			ClassContext:  classContext,
			Signature:     sym.Signature,
			Body:          chunkBody,
			TokenCount:    tokenest.Estimate(chunkBody),
		})
	}
	return chunks
}

func nodesFromSymbols(project, path string, symbols []vaultmodel.SymbolDefinition) []vaultmodel.CodeNode {
	nodes := make([]vaultmodel.CodeNode, 0, len(symbols))
	for _, sym := range symbols {
		name := sym.Name
		if sym.Scope != nil {
			name = *sym.Scope + "." + sym.Name
		}
		line := sym.Line
		nodes = append(nodes, vaultmodel.CodeNode{
			QualifiedID: path + "::" + name,
			ProjectID:   project,
			File:        path,
			Kind:        codeNodeKindFromSymbolKind(sym.Kind, sym.Scope != nil),
			Name:        name,
			Signature:   sym.Signature,
			Line:        &line,
		})
	}
	return nodes
}

func chunkKindFromSymbolKind(kind string) vaultmodel.ChunkKind {
	switch kind {
	case "class", "struct", "interface":
		return vaultmodel.ChunkClass
	case "method":
		return vaultmodel.ChunkMethod
	case "function":
		return vaultmodel.ChunkFunction
	default:
		return vaultmodel.ChunkModule
	}
}

func codeNodeKindFromSymbolKind(kind string, scoped bool) vaultmodel.CodeNodeKind {
	switch kind {
	case "class", "struct", "interface":
		return vaultmodel.CodeNodeClass
	case "function":
		if scoped {
			return vaultmodel.CodeNodeMethod
		}
		return vaultmodel.CodeNodeFunction
	case "method":
		return vaultmodel.CodeNodeMethod
	default:
		return vaultmodel.CodeNodeModule
	}
}

func languageFromExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return "python"
	case ".go":
		return "go"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx":
		return "javascript"
	default:
		return ""
	}
}

func clampIndex(i, max int) int {
	if i < 0 {
		return 0
	}
	if i > max {
		return max
	}
	return i
}
