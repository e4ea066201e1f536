// Package config loads vlt.toml, the Vault's project configuration file.
//
// The file is searched for upward from the current working directory, the
// same way the "cie" example tool in this pack walks parent directories
// looking for its own project config. Every subsection has built-in
// defaults; a missing subsection is not an error, only a missing required
// [project] key is.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/vaultlabs/vlt/internal/vaulterrors"
)

const configFileName = "vlt.toml"

// ProjectConfig is the required [project] table.
type ProjectConfig struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

// EmbeddingConfig is [coderag.embedding].
type EmbeddingConfig struct {
	Model     string `toml:"model"`
	BatchSize int    `toml:"batch_size"`
}

// RepoMapConfig is [coderag.repomap].
type RepoMapConfig struct {
	MaxTokens         int  `toml:"max_tokens"`
	IncludeSignatures bool `toml:"include_signatures"`
	IncludeDocstrings bool `toml:"include_docstrings"`
}

// DeltaConfig is [coderag.delta].
type DeltaConfig struct {
	FileThreshold  int  `toml:"file_threshold"`
	LineThreshold  int  `toml:"line_threshold"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
	JITIndexing    bool `toml:"jit_indexing"`
}

// CodeRAGConfig is [coderag].
type CodeRAGConfig struct {
	Include   []string        `toml:"include"`
	Exclude   []string        `toml:"exclude"`
	Languages []string        `toml:"languages"`
	Embedding EmbeddingConfig `toml:"embedding"`
	RepoMap   RepoMapConfig   `toml:"repomap"`
	Delta     DeltaConfig     `toml:"delta"`
}

// OracleConfig is [oracle].
type OracleConfig struct {
	VaultURL         string `toml:"vault_url"`
	SynthesisModel   string `toml:"synthesis_model"`
	RerankModel      string `toml:"rerank_model"`
	MaxContextTokens int    `toml:"max_context_tokens"`
}

// SyncConfig is [sync] — not part of spec.md's vlt.toml table list, but
// required to configure the optional Kafka-backed daemon queue (see
// SPEC_FULL.md's domain stack). Entirely optional; zero value disables it.
type SyncConfig struct {
	KafkaBrokers []string `toml:"kafka_brokers"`
	Topic        string   `toml:"topic"`
}

// CacheConfig is [cache] — optional Redis front for summary-cache freshness
// checks (see SPEC_FULL.md). Zero value disables it.
type CacheConfig struct {
	Addr string `toml:"addr"`
	DB   int    `toml:"db"`
}

// Config is the full parsed vlt.toml plus environment overlays.
type Config struct {
	Project ProjectConfig `toml:"project"`
	CodeRAG CodeRAGConfig `toml:"coderag"`
	Oracle  OracleConfig  `toml:"oracle"`
	Sync    SyncConfig    `toml:"sync"`
	Cache   CacheConfig   `toml:"cache"`

	// Populated from the environment, never from vlt.toml.
	SyncToken    string
	VaultURLEnv  string
	ChatAPIKey   string
	ChatBaseURL  string
	EmbedAPIKey  string
	EmbedBaseURL string

	// Path is the resolved filesystem path of the loaded vlt.toml.
	Path string
}

func defaults() Config {
	return Config{
		CodeRAG: CodeRAGConfig{
			Languages: []string{"python", "go", "typescript", "javascript"},
			Embedding: EmbeddingConfig{Model: "text-embedding-3-small", BatchSize: 32},
			RepoMap:   RepoMapConfig{MaxTokens: 2048, IncludeSignatures: true, IncludeDocstrings: false},
			Delta:     DeltaConfig{FileThreshold: 5, LineThreshold: 1000, TimeoutSeconds: 300, JITIndexing: true},
		},
		Oracle: OracleConfig{
			MaxContextTokens: 16000,
		},
	}
}

// Load searches upward from dir (or the current working directory if dir is
// empty) for vlt.toml, parses it, applies built-in defaults to any missing
// subsection, and overlays environment variables.
func Load(dir string) (Config, error) {
	path, err := findConfigFile(dir)
	if err != nil {
		return Config{}, err
	}
	return LoadFile(path)
}

// LoadFile parses a specific vlt.toml path.
func LoadFile(path string) (Config, error) {
	cfg := defaults()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, vaulterrors.Wrap(vaulterrors.ErrConfig, fmt.Errorf("parse %s: %w", path, err))
	}
	if cfg.Project.ID == "" || cfg.Project.Name == "" {
		return Config{}, vaulterrors.Wrap(vaulterrors.ErrConfig,
			fmt.Errorf("%s: [project] requires both \"id\" and \"name\"", path))
	}
	cfg.Path = path
	_ = LoadCredentials()
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.SyncToken = os.Getenv("VLT_SYNC_TOKEN")
	if v := os.Getenv("VLT_VAULT_URL"); v != "" {
		cfg.VaultURLEnv = v
		if cfg.Oracle.VaultURL == "" {
			cfg.Oracle.VaultURL = v
		}
	}
	cfg.ChatAPIKey = os.Getenv("VLT_CHAT_API_KEY")
	cfg.ChatBaseURL = os.Getenv("VLT_CHAT_BASE_URL")
	cfg.EmbedAPIKey = os.Getenv("VLT_EMBED_API_KEY")
	cfg.EmbedBaseURL = os.Getenv("VLT_EMBED_BASE_URL")
}

// findConfigFile walks up from dir looking for vlt.toml, the way the "cie"
// example tool's findConfigFile walks up looking for .cie/project.yaml.
func findConfigFile(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", vaulterrors.Wrap(vaulterrors.ErrConfig, fmt.Errorf("getwd: %w", err))
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", vaulterrors.Wrap(vaulterrors.ErrConfig, fmt.Errorf("resolve %s: %w", dir, err))
	}
	for {
		candidate := filepath.Join(dir, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", vaulterrors.Wrap(vaulterrors.ErrConfig,
		fmt.Errorf("no %s found in the current directory or any parent directory", configFileName))
}
