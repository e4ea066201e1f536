package delta

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCalculateFileHash_Is32HexMD5(t *testing.T) {
	path := writeTemp(t, "hello world")
	hash, err := CalculateFileHash(path)
	require.NoError(t, err)
	require.Len(t, hash, 32)
}

func TestDetectFileChanges_Added(t *testing.T) {
	path := writeTemp(t, "line1\nline2\nline3\n")
	c, err := DetectFileChanges(path, nil)
	require.NoError(t, err)
	require.Equal(t, vaultmodel.DeltaAdded, c.Kind)
	require.Equal(t, 3, c.LinesChangedEst)
	require.NotNil(t, c.NewHash)
}

func TestDetectFileChanges_Modified(t *testing.T) {
	path := writeTemp(t, "line1\nline2\nline3\nline4\n")
	old := "0000000000000000000000000000000"
	c, err := DetectFileChanges(path, &old)
	require.NoError(t, err)
	require.Equal(t, vaultmodel.DeltaModified, c.Kind)
	require.Equal(t, 1, c.LinesChangedEst) // 4 lines / 4
}

func TestDetectFileChanges_Unchanged(t *testing.T) {
	path := writeTemp(t, "same content")
	hash, err := CalculateFileHash(path)
	require.NoError(t, err)
	c, err := DetectFileChanges(path, &hash)
	require.NoError(t, err)
	require.Equal(t, Unchanged, c.Kind)
}

func TestDetectFileChanges_Deleted(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "gone.txt")
	old := "abc"
	c, err := DetectFileChanges(missing, &old)
	require.NoError(t, err)
	require.Equal(t, vaultmodel.DeltaDeleted, c.Kind)
	require.Equal(t, 100, c.LinesChangedEst)
}

func TestCheckThresholds_QueuedFileCount(t *testing.T) {
	var entries []vaultmodel.IndexDeltaQueue
	for i := 0; i < 5; i++ {
		entries = append(entries, vaultmodel.IndexDeltaQueue{QueuedAt: time.Now()})
	}
	require.True(t, CheckThresholds(entries))
}

func TestCheckThresholds_LineSum(t *testing.T) {
	entries := []vaultmodel.IndexDeltaQueue{
		{QueuedAt: time.Now(), LinesChangedEst: 600},
		{QueuedAt: time.Now(), LinesChangedEst: 500},
	}
	require.True(t, CheckThresholds(entries))
}

func TestCheckThresholds_Age(t *testing.T) {
	entries := []vaultmodel.IndexDeltaQueue{
		{QueuedAt: time.Now().Add(-6 * time.Minute), LinesChangedEst: 1},
	}
	require.True(t, CheckThresholds(entries))
}

func TestCheckThresholds_BelowAllThresholds(t *testing.T) {
	entries := []vaultmodel.IndexDeltaQueue{
		{QueuedAt: time.Now(), LinesChangedEst: 10},
	}
	require.False(t, CheckThresholds(entries))
}

func TestGetFilesMatchingQuery_PathToken(t *testing.T) {
	pending := []vaultmodel.IndexDeltaQueue{
		{ID: "1", FilePath: "src/auth/login.py"},
		{ID: "2", FilePath: "src/db/conn.py"},
	}
	matched := GetFilesMatchingQuery("what changed in src/auth/login.py recently", pending)
	require.Len(t, matched, 1)
	require.Equal(t, "1", matched[0].ID)
}

func TestGetFilesMatchingQuery_IdentifierStem(t *testing.T) {
	pending := []vaultmodel.IndexDeltaQueue{
		{ID: "1", FilePath: "src/AuthService.py"},
	}
	matched := GetFilesMatchingQuery("explain AuthService behavior", pending)
	require.Len(t, matched, 1)
}

func TestGetFilesMatchingQuery_NoMatch(t *testing.T) {
	pending := []vaultmodel.IndexDeltaQueue{
		{ID: "1", FilePath: "src/db/conn.py"},
	}
	matched := GetFilesMatchingQuery("tell me about caching", pending)
	require.Empty(t, matched)
}

type fakeQueueStore struct {
	queued     []vaultmodel.IndexDeltaQueue
	promoted   []string
	statuses   map[string]vaultmodel.DeltaStatus
	deletedFor []string
}

func newFakeQueueStore() *fakeQueueStore {
	return &fakeQueueStore{statuses: map[string]vaultmodel.DeltaStatus{}}
}

func (f *fakeQueueStore) QueueFileChange(ctx context.Context, entry vaultmodel.IndexDeltaQueue) error {
	entry.ID = entry.FilePath
	entry.QueuedAt = time.Now()
	f.queued = append(f.queued, entry)
	return nil
}

func (f *fakeQueueStore) QueuedEntries(ctx context.Context, project string) ([]vaultmodel.IndexDeltaQueue, error) {
	return f.queued, nil
}

func (f *fakeQueueStore) PromoteToCritical(ctx context.Context, id string) error {
	f.promoted = append(f.promoted, id)
	for i := range f.queued {
		if f.queued[i].ID == id {
			f.queued[i].Priority = vaultmodel.PriorityCritical
		}
	}
	return nil
}

func (f *fakeQueueStore) MarkDeltaStatus(ctx context.Context, id string, status vaultmodel.DeltaStatus, cause *string) error {
	f.statuses[id] = status
	return nil
}

func (f *fakeQueueStore) DeleteFileData(ctx context.Context, project, path string) error {
	f.deletedFor = append(f.deletedFor, path)
	return nil
}

type fakeIndexer struct {
	indexed []string
	failOn  string
}

func (f *fakeIndexer) IndexFile(ctx context.Context, project, path string) error {
	if path == f.failOn {
		return os.ErrInvalid
	}
	f.indexed = append(f.indexed, path)
	return nil
}

func TestManager_Commit_IndexesAndMarksDone(t *testing.T) {
	qs := newFakeQueueStore()
	idx := &fakeIndexer{}
	m := &Manager{Store: qs, Indexer: idx, Project: "proj-1"}

	require.NoError(t, m.QueueFileChange(context.Background(), "src/a.py",
		Change{Kind: vaultmodel.DeltaAdded, LinesChangedEst: 10}, vaultmodel.PriorityNormal))
	require.NoError(t, m.Commit(context.Background()))

	require.Contains(t, idx.indexed, "src/a.py")
	require.Equal(t, vaultmodel.DeltaDone, qs.statuses["src/a.py"])
	require.Contains(t, qs.deletedFor, "src/a.py")
}

func TestManager_Commit_MarksFailedOnIndexError(t *testing.T) {
	qs := newFakeQueueStore()
	idx := &fakeIndexer{failOn: "src/bad.py"}
	m := &Manager{Store: qs, Indexer: idx, Project: "proj-1"}

	require.NoError(t, m.QueueFileChange(context.Background(), "src/bad.py",
		Change{Kind: vaultmodel.DeltaAdded, LinesChangedEst: 10}, vaultmodel.PriorityNormal))
	require.NoError(t, m.Commit(context.Background()))

	require.Equal(t, vaultmodel.DeltaFailed, qs.statuses["src/bad.py"])
}

func TestManager_Commit_DeletedFileSkipsIndexing(t *testing.T) {
	qs := newFakeQueueStore()
	idx := &fakeIndexer{}
	m := &Manager{Store: qs, Indexer: idx, Project: "proj-1"}

	require.NoError(t, m.QueueFileChange(context.Background(), "src/gone.py",
		Change{Kind: vaultmodel.DeltaDeleted, LinesChangedEst: 100}, vaultmodel.PriorityNormal))
	require.NoError(t, m.Commit(context.Background()))

	require.Empty(t, idx.indexed)
	require.Equal(t, vaultmodel.DeltaDone, qs.statuses["src/gone.py"])
}

func TestManager_PromoteMatching(t *testing.T) {
	qs := newFakeQueueStore()
	m := &Manager{Store: qs, Indexer: &fakeIndexer{}, Project: "proj-1"}

	require.NoError(t, m.QueueFileChange(context.Background(), "src/AuthService.py",
		Change{Kind: vaultmodel.DeltaAdded, LinesChangedEst: 10}, vaultmodel.PriorityNormal))
	matched, err := m.PromoteMatching(context.Background(), "explain AuthService")
	require.NoError(t, err)
	require.Len(t, matched, 1)

	require.Contains(t, qs.promoted, "src/AuthService.py")
}

func TestManager_PromoteMatching_OnlyMatchingFilePromotedAndCommitsItFirst(t *testing.T) {
	qs := newFakeQueueStore()
	idx := &fakeIndexer{}
	m := &Manager{Store: qs, Indexer: idx, Project: "proj-1"}

	for _, path := range []string{"src/user.py", "src/util.py", "src/auth.py"} {
		require.NoError(t, m.QueueFileChange(context.Background(), path,
			Change{Kind: vaultmodel.DeltaAdded, LinesChangedEst: 10}, vaultmodel.PriorityNormal))
	}

	matched, err := m.PromoteMatching(context.Background(), "Where is authenticate used in src/auth.py?")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	require.Equal(t, []string{"src/auth.py"}, qs.promoted)

	entries, err := qs.QueuedEntries(context.Background(), "proj-1")
	require.NoError(t, err)
	require.False(t, CheckThresholds(entries))

	require.NoError(t, m.Commit(context.Background()))
	require.Equal(t, "src/auth.py", idx.indexed[0])
}
