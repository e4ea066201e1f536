package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultlabs/vlt/internal/conversation"
	"github.com/vaultlabs/vlt/internal/delta"
	"github.com/vaultlabs/vlt/internal/llmclient"
	"github.com/vaultlabs/vlt/internal/retrieval"
	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

type fakeRetriever struct {
	name      string
	results   []retrieval.Result
	err       error
	available bool
}

func (f *fakeRetriever) Name() string { return f.name }

func (f *fakeRetriever) Available(ctx context.Context) bool { return f.available }

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, limit int) ([]retrieval.Result, error) {
	return f.results, f.err
}

type fakeConvStore struct {
	active      *vaultmodel.OracleConversation
	createErr   error
	updates     []vaultmodel.OracleConversation
}

func (f *fakeConvStore) FindActiveConversation(ctx context.Context, project, user string) (vaultmodel.OracleConversation, bool, error) {
	if f.active == nil {
		return vaultmodel.OracleConversation{}, false, nil
	}
	return *f.active, true, nil
}

func (f *fakeConvStore) CreateConversation(ctx context.Context, c vaultmodel.OracleConversation) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.active = &c
	return nil
}

func (f *fakeConvStore) UpdateConversation(ctx context.Context, c vaultmodel.OracleConversation) error {
	f.updates = append(f.updates, c)
	f.active = &c
	return nil
}

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
			"usage": map[string]any{"total_tokens": 42},
		})
	}))
}

func TestQuery_NoResultsReturnsHonestNoContextResponse(t *testing.T) {
	o := &Orchestrator{
		Project: "proj",
		Retrievers: RetrieverSet{
			Vector: &fakeRetriever{name: "vector", available: true},
		},
	}

	resp, err := o.Query(context.Background(), "what is this?", Options{})
	require.NoError(t, err)
	require.Equal(t, "none", resp.Model)
	require.Zero(t, resp.TokensUsed)
	require.Zero(t, resp.CostCents)
	require.Empty(t, resp.Sources)
	require.Contains(t, resp.Answer, "could not find any relevant information")
}

func TestQuery_RetrieverErrorIsolatedFromOthers(t *testing.T) {
	o := &Orchestrator{
		Project: "proj",
		Retrievers: RetrieverSet{
			Vector: &fakeRetriever{name: "vector", available: true, err: context.DeadlineExceeded},
			BM25: &fakeRetriever{name: "bm25", available: true, results: []retrieval.Result{
				{Content: "func Foo() {}", SourceType: retrieval.SourceCode, SourcePath: "foo.go", Method: retrieval.MethodBM25, Score: 0.9},
			}},
		},
	}

	resp, err := o.Query(context.Background(), "what does Foo do?", Options{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Sources)
	require.Equal(t, "foo.go", resp.Sources[0].SourcePath)
}

func TestQuery_NoLLMYieldsErrorAnswerWithZeroTokensButNilError(t *testing.T) {
	o := &Orchestrator{
		Project: "proj",
		Retrievers: RetrieverSet{
			Vector: &fakeRetriever{name: "vector", available: true, results: []retrieval.Result{
				{Content: "func Foo() {}", SourceType: retrieval.SourceCode, SourcePath: "foo.go", Method: retrieval.MethodVector, Score: 0.9},
			}},
		},
	}

	resp, err := o.Query(context.Background(), "what does Foo do?", Options{})
	require.NoError(t, err)
	require.Equal(t, "none", resp.Model)
	require.Zero(t, resp.TokensUsed)
	require.Contains(t, resp.Answer, "Error:")
}

func TestQuery_SynthesizesWithLLMWhenAvailable(t *testing.T) {
	srv := chatServer(t, "Foo does nothing. [foo.go]")
	defer srv.Close()

	llm := llmclient.New(srv.URL, "test-key", "", "")
	o := &Orchestrator{
		Project:        "proj",
		SynthesisModel: "test-model",
		LLM:            llm,
		Retrievers: RetrieverSet{
			Vector: &fakeRetriever{name: "vector", available: true, results: []retrieval.Result{
				{Content: "func Foo() {}", SourceType: retrieval.SourceCode, SourcePath: "foo.go", Method: retrieval.MethodVector, Score: 0.9},
			}},
		},
	}

	resp, err := o.Query(context.Background(), "what does Foo do?", Options{})
	require.NoError(t, err)
	require.Equal(t, "test-model", resp.Model)
	require.Equal(t, 42, resp.TokensUsed)
	require.InDelta(t, 42.0/1000*0.001*100, resp.CostCents, 1e-9)
	require.Contains(t, resp.Answer, "Foo does nothing")
}

func TestQuery_ConversationSessionErrorPropagates(t *testing.T) {
	store := &fakeConvStore{createErr: context.DeadlineExceeded}
	o := &Orchestrator{
		Project:       "proj",
		Conversations: &conversation.Manager{Store: store},
		Retrievers: RetrieverSet{
			Vector: &fakeRetriever{name: "vector", available: true},
		},
	}

	_, err := o.Query(context.Background(), "q", Options{UseConversation: true, UserID: "u1"})
	require.Error(t, err)
}

func TestQuery_LogsExchangeToConversationSession(t *testing.T) {
	store := &fakeConvStore{}
	o := &Orchestrator{
		Project:       "proj",
		Conversations: &conversation.Manager{Store: store},
		Retrievers: RetrieverSet{
			Vector: &fakeRetriever{name: "vector", available: true, results: []retrieval.Result{
				{Content: "func Foo() {}", SourceType: retrieval.SourceCode, SourcePath: "foo.go", Method: retrieval.MethodVector, Score: 0.9},
			}},
		},
	}

	_, err := o.Query(context.Background(), "what does Foo do?", Options{UseConversation: true, UserID: "u1"})
	require.NoError(t, err)
	require.NotEmpty(t, store.updates)
	require.Len(t, store.updates[len(store.updates)-1].Exchanges, 1)
}

func TestQuery_SourcesTruncatedToTen(t *testing.T) {
	results := make([]retrieval.Result, 15)
	for i := range results {
		results[i] = retrieval.Result{
			Content:    "x",
			SourceType: retrieval.SourceCode,
			SourcePath: string(rune('a'+i)) + ".go",
			Method:     retrieval.MethodVector,
			Score:      float64(15 - i),
		}
	}
	o := &Orchestrator{
		Project: "proj",
		Retrievers: RetrieverSet{
			Vector: &fakeRetriever{name: "vector", available: true, results: results},
		},
	}

	resp, err := o.Query(context.Background(), "q", Options{})
	require.NoError(t, err)
	require.Len(t, resp.Sources, 10)
}

func TestQuery_ExplainPopulatesTraces(t *testing.T) {
	o := &Orchestrator{
		Project: "proj",
		Retrievers: RetrieverSet{
			Vector: &fakeRetriever{name: "vector", available: true, results: []retrieval.Result{
				{Content: "func Foo() {}", SourceType: retrieval.SourceCode, SourcePath: "foo.go", Method: retrieval.MethodVector, Score: 0.9},
			}},
		},
	}

	resp, err := o.Query(context.Background(), "what does Foo do?", Options{Explain: true})
	require.NoError(t, err)
	require.NotNil(t, resp.Traces)
	require.NotEmpty(t, resp.Traces.PerSource)
	require.NotEmpty(t, resp.Traces.TimingsMillis)
}

func TestQuery_SourcesFilterExcludesThreadsWhenNotRequested(t *testing.T) {
	o := &Orchestrator{
		Project: "proj",
		Retrievers: RetrieverSet{
			Vector: &fakeRetriever{name: "vector", available: true, results: []retrieval.Result{
				{Content: "func Foo() {}", SourceType: retrieval.SourceCode, SourcePath: "foo.go", Method: retrieval.MethodVector, Score: 0.9},
			}},
			Thread: &fakeRetriever{name: "thread", available: true, results: []retrieval.Result{
				{Content: "thread note", SourceType: retrieval.SourceThread, SourcePath: "thread-1", Method: retrieval.MethodVector, Score: 0.9},
			}},
		},
	}

	resp, err := o.Query(context.Background(), "what does Foo do?", Options{Sources: []string{SourceCode}})
	require.NoError(t, err)
	for _, s := range resp.Sources {
		require.NotEqual(t, retrieval.SourceThread, s.SourceType)
	}
}

func TestQuery_RepoMapProviderErrorIsNonFatal(t *testing.T) {
	o := &Orchestrator{
		Project: "proj",
		RepoMap: repoMapFunc(func(ctx context.Context, project string, budget int) (string, error) {
			return "", context.DeadlineExceeded
		}),
		Retrievers: RetrieverSet{
			Vector: &fakeRetriever{name: "vector", available: true, results: []retrieval.Result{
				{Content: "func Foo() {}", SourceType: retrieval.SourceCode, SourcePath: "foo.go", Method: retrieval.MethodVector, Score: 0.9},
			}},
		},
	}

	resp, err := o.Query(context.Background(), "what does Foo do?", Options{IncludeRepoMap: true})
	require.NoError(t, err)
	require.Empty(t, resp.RepoMapSlice)
}

type repoMapFunc func(ctx context.Context, project string, budget int) (string, error)

func (f repoMapFunc) RepoMapSlice(ctx context.Context, project string, budget int) (string, error) {
	return f(ctx, project, budget)
}

type fakeDeltaStore struct {
	queued   []vaultmodel.IndexDeltaQueue
	promoted []string
	indexed  []string
}

func (f *fakeDeltaStore) QueueFileChange(ctx context.Context, entry vaultmodel.IndexDeltaQueue) error {
	entry.ID = entry.FilePath
	f.queued = append(f.queued, entry)
	return nil
}

func (f *fakeDeltaStore) QueuedEntries(ctx context.Context, project string) ([]vaultmodel.IndexDeltaQueue, error) {
	return f.queued, nil
}

func (f *fakeDeltaStore) PromoteToCritical(ctx context.Context, id string) error {
	f.promoted = append(f.promoted, id)
	return nil
}

func (f *fakeDeltaStore) MarkDeltaStatus(ctx context.Context, id string, status vaultmodel.DeltaStatus, cause *string) error {
	return nil
}

func (f *fakeDeltaStore) DeleteFileData(ctx context.Context, project, path string) error { return nil }

func (f *fakeDeltaStore) IndexFile(ctx context.Context, project, path string) error {
	f.indexed = append(f.indexed, path)
	return nil
}

func TestQuery_PromotesAndCommitsMatchingQueueEntriesBeforeRetrieval(t *testing.T) {
	store := &fakeDeltaStore{}
	deltaMgr := &delta.Manager{Store: store, Indexer: store, Project: "proj"}
	require.NoError(t, deltaMgr.QueueFileChange(context.Background(), "src/auth.py",
		delta.Change{Kind: vaultmodel.DeltaAdded, LinesChangedEst: 5}, vaultmodel.PriorityNormal))

	o := &Orchestrator{
		Project: "proj",
		Delta:   deltaMgr,
		Retrievers: RetrieverSet{
			Vector: &fakeRetriever{name: "vector", available: true, results: []retrieval.Result{
				{Content: "func authenticate_user() {}", SourceType: retrieval.SourceCode, SourcePath: "src/auth.py", Method: retrieval.MethodVector, Score: 0.9},
			}},
		},
	}

	_, err := o.Query(context.Background(), "Where is authenticate used in src/auth.py?", Options{})
	require.NoError(t, err)
	require.Contains(t, store.promoted, "src/auth.py")
	require.Contains(t, store.indexed, "src/auth.py")
}
