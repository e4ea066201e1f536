package main

import (
	"os"
	"path/filepath"

	"github.com/vaultlabs/vlt/internal/cache"
	"github.com/vaultlabs/vlt/internal/config"
	"github.com/vaultlabs/vlt/internal/conversation"
	"github.com/vaultlabs/vlt/internal/delta"
	"github.com/vaultlabs/vlt/internal/ingest"
	"github.com/vaultlabs/vlt/internal/llmclient"
	"github.com/vaultlabs/vlt/internal/oracle"
	"github.com/vaultlabs/vlt/internal/repomap"
	"github.com/vaultlabs/vlt/internal/retrieval"
	"github.com/vaultlabs/vlt/internal/store"
	"github.com/vaultlabs/vlt/internal/summarizer"
	"github.com/vaultlabs/vlt/internal/syncdaemon"
)

// app bundles the components every subcommand needs, built fresh once per
// invocation from vlt.toml plus environment.
type app struct {
	Config     config.Config
	Store      *store.Store
	LLM        *llmclient.Client
	Summarizer *summarizer.Summarizer
	Delta      *delta.Manager
	Indexer    *ingest.FileIndexer
	Oracle     *oracle.Orchestrator
	DaemonBase string
}

// dbPath returns the SQLite file a vlt.toml resolves to: a ".vlt" directory
// beside the config file itself, the same "hidden dir next to the project
// file" convention CredentialsPath uses under $HOME.
func dbPath(cfg config.Config) (string, error) {
	dir := filepath.Join(filepath.Dir(cfg.Path), ".vlt")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "vault.db"), nil
}

// buildApp loads vlt.toml from the current directory upward and wires
// every component a subcommand might need. Callers must call Store.Close
// when done.
func buildApp() (*app, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}

	path, err := dbPath(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}

	llm := llmclient.New(cfg.ChatBaseURL, cfg.ChatAPIKey, cfg.EmbedBaseURL, cfg.EmbedAPIKey)

	summaryCache, err := cache.New(cfg.Cache, 0)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	summ := &summarizer.Summarizer{Store: st, LLM: llm, Cache: summaryCache}
	convMgr := &conversation.Manager{Store: st, LLM: llm}

	project := cfg.Project.ID
	embedModel := cfg.CodeRAG.Embedding.Model

	retrievers := oracle.RetrieverSet{
		Vector: &retrieval.VectorRetriever{Store: st, LLM: llm, Project: project, EmbedModel: embedModel},
		BM25:   &retrieval.BM25Retriever{Store: st, Project: project},
		Graph:  &retrieval.GraphRetriever{Store: st, Project: project},
		Thread: &retrieval.ThreadRetriever{Store: st, LLM: llm, Project: project, EmbedModel: embedModel, Summarizer: summ},
	}
	if cfg.Oracle.VaultURL != "" {
		retrievers.Vault = &retrieval.VaultRetriever{BaseURL: cfg.Oracle.VaultURL}
	}

	repoMap := &repomap.Provider{
		Store:             st,
		IncludeSignatures: cfg.CodeRAG.RepoMap.IncludeSignatures,
		IncludeDocstrings: cfg.CodeRAG.RepoMap.IncludeDocstrings,
	}

	indexer := &ingest.FileIndexer{Store: st, LLM: llm, EmbedModel: embedModel}
	deltaMgr := &delta.Manager{Store: st, Indexer: indexer, Project: project}

	orch := &oracle.Orchestrator{
		Project:        project,
		Retrievers:     retrievers,
		LLM:            llm,
		SynthesisModel: cfg.Oracle.SynthesisModel,
		RerankModel:    cfg.Oracle.RerankModel,
		Conversations:  convMgr,
		RepoMap:        repoMap,
		Delta:          deltaMgr,
	}

	return &app{
		Config:     cfg,
		Store:      st,
		LLM:        llm,
		Summarizer: summ,
		Delta:      deltaMgr,
		Indexer:    indexer,
		Oracle:     orch,
		DaemonBase: daemonBaseURL(cfg),
	}, nil
}

func daemonBaseURL(cfg config.Config) string {
	if v := os.Getenv("VLT_DAEMON_URL"); v != "" {
		return v
	}
	return "http://127.0.0.1:8765"
}

// daemonQueue builds the Queue backend `daemon serve` runs against:
// Kafka-backed when [sync].kafka_brokers is configured, an in-process
// channel queue otherwise.
func daemonQueue(a *app) syncdaemon.Queue {
	if len(a.Config.Sync.KafkaBrokers) > 0 {
		topic := a.Config.Sync.Topic
		if topic == "" {
			topic = "vlt.sync"
		}
		return syncdaemon.NewKafkaQueue(a.Config.Sync.KafkaBrokers, topic)
	}
	return syncdaemon.NewChannelQueue(syncdaemon.IndexerProcessor{Indexer: a.Indexer}, 4)
}
