package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultlabs/vlt/internal/llmclient"
	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

type fakeStore struct {
	chunks  []vaultmodel.CodeChunk
	nodes   []vaultmodel.CodeNode
	symbols []vaultmodel.SymbolDefinition
}

func (f *fakeStore) SaveChunks(ctx context.Context, project string, chunks []vaultmodel.CodeChunk) error {
	f.chunks = chunks
	return nil
}

func (f *fakeStore) SaveGraph(ctx context.Context, project string, nodes []vaultmodel.CodeNode, edges []vaultmodel.CodeEdge) error {
	f.nodes = nodes
	return nil
}

func (f *fakeStore) SaveSymbols(ctx context.Context, project string, symbols []vaultmodel.SymbolDefinition) error {
	f.symbols = symbols
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.py")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestFileIndexer_NoTagsLoaderProducesOneModuleChunk(t *testing.T) {
	path := writeFile(t, "def f():\n    return 1\n")
	store := &fakeStore{}
	fi := &FileIndexer{Store: store}

	require.NoError(t, fi.IndexFile(context.Background(), "proj", path))

	require.Len(t, store.chunks, 1)
	require.Equal(t, vaultmodel.ChunkModule, store.chunks[0].Kind)
	require.Empty(t, store.nodes)
	require.Empty(t, store.symbols)
}

func TestFileIndexer_TagsLoaderSlicesChunksPerSymbol(t *testing.T) {
	path := writeFile(t, "def a():\n    pass\n\ndef b():\n    pass\n")
	store := &fakeStore{}
	fi := &FileIndexer{
		Store: store,
		Tags: func(ctx context.Context, project, p string) ([]vaultmodel.SymbolDefinition, error) {
			return []vaultmodel.SymbolDefinition{
				{Name: "a", File: p, Line: 1, Kind: "function"},
				{Name: "b", File: p, Line: 4, Kind: "function"},
			}, nil
		},
	}

	require.NoError(t, fi.IndexFile(context.Background(), "proj", path))

	require.Len(t, store.chunks, 2)
	require.Equal(t, "a", store.chunks[0].ShortName)
	require.Equal(t, 1, store.chunks[0].StartLine)
	require.Equal(t, 3, store.chunks[0].EndLine)
	require.Equal(t, "b", store.chunks[1].ShortName)
	require.Equal(t, 4, store.chunks[1].StartLine)

	require.Len(t, store.nodes, 2)
	require.Equal(t, vaultmodel.CodeNodeFunction, store.nodes[0].Kind)
	require.Len(t, store.symbols, 2)
}

func TestFileIndexer_ScopedSymbolBecomesMethodNode(t *testing.T) {
	path := writeFile(t, "class C:\n    def m(self):\n        pass\n")
	store := &fakeStore{}
	scope := "C"
	fi := &FileIndexer{
		Store: store,
		Tags: func(ctx context.Context, project, p string) ([]vaultmodel.SymbolDefinition, error) {
			return []vaultmodel.SymbolDefinition{
				{Name: "C", File: p, Line: 1, Kind: "class"},
				{Name: "m", File: p, Line: 2, Kind: "function", Scope: &scope},
			}, nil
		},
	}

	require.NoError(t, fi.IndexFile(context.Background(), "proj", path))

	require.Equal(t, vaultmodel.CodeNodeClass, store.nodes[0].Kind)
	require.Equal(t, vaultmodel.CodeNodeMethod, store.nodes[1].Kind)
	require.Equal(t, "C.m", store.nodes[1].Name)
}

func TestFileIndexer_SkipsEmbeddingWhenLLMUnavailable(t *testing.T) {
	path := writeFile(t, "x = 1\n")
	store := &fakeStore{}
	fi := &FileIndexer{Store: store, LLM: llmclient.New("", "", "", "")}

	require.NoError(t, fi.IndexFile(context.Background(), "proj", path))
	require.Nil(t, store.chunks[0].Embedding)
}

func TestFileIndexer_MissingFilePropagatesError(t *testing.T) {
	fi := &FileIndexer{Store: &fakeStore{}}
	err := fi.IndexFile(context.Background(), "proj", filepath.Join(t.TempDir(), "missing.py"))
	require.Error(t, err)
}
