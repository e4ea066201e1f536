package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultlabs/vlt/internal/vaulterrors"
)

func writeTOML(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, configFileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeTOML(t, dir, `
[project]
id = "proj-1"
name = "demo"
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "proj-1", cfg.Project.ID)
	require.Equal(t, "demo", cfg.Project.Name)
	require.Equal(t, 32, cfg.CodeRAG.Embedding.BatchSize)
	require.Equal(t, 2048, cfg.CodeRAG.RepoMap.MaxTokens)
	require.True(t, cfg.CodeRAG.Delta.JITIndexing)
	require.Equal(t, 16000, cfg.Oracle.MaxContextTokens)
}

func TestLoadFile_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeTOML(t, dir, `
[project]
id = "proj-1"
name = "demo"

[coderag]
languages = ["go"]

[coderag.embedding]
batch_size = 8

[oracle]
max_context_tokens = 4000
`)

	cfg, err := LoadFile(filepath.Join(dir, configFileName))
	require.NoError(t, err)
	require.Equal(t, []string{"go"}, cfg.CodeRAG.Languages)
	require.Equal(t, 8, cfg.CodeRAG.Embedding.BatchSize)
	require.Equal(t, 4000, cfg.Oracle.MaxContextTokens)
}

func TestLoadFile_MissingRequiredProjectKeys(t *testing.T) {
	dir := t.TempDir()
	writeTOML(t, dir, `
[project]
name = "demo"
`)

	_, err := LoadFile(filepath.Join(dir, configFileName))
	require.Error(t, err)
	require.ErrorIs(t, err, vaulterrors.ErrConfig)
}

func TestLoadFile_MalformedTOML(t *testing.T) {
	dir := t.TempDir()
	writeTOML(t, dir, `not = [valid toml`)

	_, err := LoadFile(filepath.Join(dir, configFileName))
	require.Error(t, err)
	require.ErrorIs(t, err, vaulterrors.ErrConfig)
}

func TestLoad_WalksUpParentDirectories(t *testing.T) {
	root := t.TempDir()
	writeTOML(t, root, `
[project]
id = "root-proj"
name = "root"
`)
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := Load(nested)
	require.NoError(t, err)
	require.Equal(t, "root-proj", cfg.Project.ID)
}

func TestLoad_NotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.Error(t, err)
	require.ErrorIs(t, err, vaulterrors.ErrConfig)
}

func TestApplyEnv(t *testing.T) {
	dir := t.TempDir()
	writeTOML(t, dir, `
[project]
id = "proj-1"
name = "demo"
`)
	t.Setenv("VLT_SYNC_TOKEN", "tok-123")
	t.Setenv("VLT_VAULT_URL", "http://localhost:8765")

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "tok-123", cfg.SyncToken)
	require.Equal(t, "http://localhost:8765", cfg.Oracle.VaultURL)
}
