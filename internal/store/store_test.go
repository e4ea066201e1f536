package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vlt.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedProjectThread(t *testing.T, s *Store) (project, thread string) {
	t.Helper()
	ctx := context.Background()
	project = "proj-1"
	require.NoError(t, s.CreateProject(ctx, vaultmodel.Project{ID: project, Name: "demo"}))
	thread = "thread-1"
	require.NoError(t, s.CreateThread(ctx, vaultmodel.Thread{ID: thread, ProjectID: project}))
	return project, thread
}

func TestAppendNode_SequenceAndPrevInvariant(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, thread := seedProjectThread(t, s)

	n1, err := s.AppendNode(ctx, thread, "first", "alice", nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), n1.SequenceID)
	require.Nil(t, n1.PrevNodeID)

	n2, err := s.AppendNode(ctx, thread, "second", "alice", nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), n2.SequenceID)
	require.NotNil(t, n2.PrevNodeID)
	require.Equal(t, n1.ID, *n2.PrevNodeID)

	nodes, err := s.ListNodes(ctx, thread)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.Equal(t, n1.ID, nodes[0].ID)
	require.Equal(t, n2.ID, nodes[1].ID)
}

func TestListThreads_ReturnsEveryThreadOfProject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	project, first := seedProjectThread(t, s)
	second := "thread-2"
	require.NoError(t, s.CreateThread(ctx, vaultmodel.Thread{ID: second, ProjectID: project}))

	threads, err := s.ListThreads(ctx, project)
	require.NoError(t, err)
	require.Len(t, threads, 2)

	ids := map[string]bool{}
	for _, th := range threads {
		ids[th.ID] = true
	}
	require.True(t, ids[first])
	require.True(t, ids[second])
}

func TestEnsureProject_IsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := vaultmodel.Project{ID: "proj-ensure", Name: "demo"}

	require.NoError(t, s.EnsureProject(ctx, p))
	require.NoError(t, s.EnsureProject(ctx, p))
}

func TestEnsureThread_IsIdempotentAndUsableAfterCreate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	project, thread := seedProjectThread(t, s)

	require.NoError(t, s.EnsureThread(ctx, vaultmodel.Thread{ID: thread, ProjectID: project}))

	threads, err := s.ListThreads(ctx, project)
	require.NoError(t, err)
	require.Len(t, threads, 1)
}

func TestThreadSummaryCache_FreshStaleInvariant(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, thread := seedProjectThread(t, s)

	n1, err := s.AppendNode(ctx, thread, "first", "alice", nil)
	require.NoError(t, err)

	_, ok, err := s.GetThreadSummaryCache(ctx, thread)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.UpsertThreadSummaryCache(ctx, vaultmodel.ThreadSummaryCache{
		ThreadID:             thread,
		Summary:              "first note",
		LastSummarizedNodeID: &n1.ID,
		NodeCount:            1,
	}))

	cache, ok, err := s.GetThreadSummaryCache(ctx, thread)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, cache.IsFresh(n1.ID))

	n2, err := s.AppendNode(ctx, thread, "second", "alice", nil)
	require.NoError(t, err)
	require.False(t, cache.IsFresh(n2.ID))
}

func TestSaveChunks_GetByFile_DeleteFileData(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	project, _ := seedProjectThread(t, s)

	chunks := []vaultmodel.CodeChunk{
		{ID: "c1", FilePath: "src/auth.py", Kind: vaultmodel.ChunkFunction, ShortName: "authenticate_user", QualifiedName: "src.auth.authenticate_user", Language: "python", StartLine: 10, EndLine: 20, Body: "def authenticate_user(): ..."},
		{ID: "c2", FilePath: "src/auth.py", Kind: vaultmodel.ChunkFunction, ShortName: "logout_user", QualifiedName: "src.auth.logout_user", Language: "python", StartLine: 25, EndLine: 30, Body: "def logout_user(): ..."},
	}
	require.NoError(t, s.SaveChunks(ctx, project, chunks))

	got, err := s.GetChunksByFile(ctx, project, "src/auth.py")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "authenticate_user", got[0].ShortName)
	require.NotEmpty(t, got[0].FileHash)

	require.NoError(t, s.DeleteFileData(ctx, project, "src/auth.py"))
	got, err = s.GetChunksByFile(ctx, project, "src/auth.py")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestGetProjectStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	project, _ := seedProjectThread(t, s)

	require.NoError(t, s.SaveChunks(ctx, project, []vaultmodel.CodeChunk{
		{ID: "c1", FilePath: "a.py", Kind: vaultmodel.ChunkModule, Body: "pass"},
	}))
	require.NoError(t, s.SaveSymbols(ctx, project, []vaultmodel.SymbolDefinition{
		{Name: "authenticate_user", File: "src/auth.py", Line: 42, Kind: "function"},
	}))

	stats, err := s.GetProjectStats(ctx, project)
	require.NoError(t, err)
	require.Equal(t, 1, stats.ChunkCount)
	require.Equal(t, 1, stats.SymbolCount)
}

func TestQueueFileChange_Dedup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	project, _ := seedProjectThread(t, s)

	require.NoError(t, s.QueueFileChange(ctx, vaultmodel.IndexDeltaQueue{
		ProjectID: project, FilePath: "src/a.py", Kind: vaultmodel.DeltaModified, LinesChangedEst: 10,
	}))
	require.NoError(t, s.QueueFileChange(ctx, vaultmodel.IndexDeltaQueue{
		ProjectID: project, FilePath: "src/a.py", Kind: vaultmodel.DeltaModified, LinesChangedEst: 20,
	}))

	entries, err := s.QueuedEntries(ctx, project)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 20, entries[0].LinesChangedEst)
}
