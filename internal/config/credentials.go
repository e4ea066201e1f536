package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/vaultlabs/vlt/internal/vaulterrors"
)

// CredentialsPath is ~/.vlt/.env, the sidecar file `vlt config set-key`
// writes to and every process loads at startup the way the teacher's
// main.go calls godotenv.Load() before reading its own environment.
func CredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", vaulterrors.Wrap(vaulterrors.ErrConfig, fmt.Errorf("resolve home directory: %w", err))
	}
	return filepath.Join(home, ".vlt", ".env"), nil
}

// LoadCredentials loads ~/.vlt/.env into the process environment,
// skipping keys already set there (an explicit env var always wins). A
// missing file is not an error: the CLI must keep functioning on envvars
// or vlt.toml alone.
func LoadCredentials() error {
	path, err := CredentialsPath()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrConfig, fmt.Errorf("load %s: %w", path, err))
	}
	return nil
}

// SetKey persists the sync token (and, optionally, the vault server URL)
// into ~/.vlt/.env, replacing any prior value for the same keys and
// keeping every other non-blank line as it was; blank lines are dropped.
func SetKey(token, serverURL string) (string, error) {
	path, err := CredentialsPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", vaulterrors.Wrap(vaulterrors.ErrConfig, fmt.Errorf("create %s: %w", filepath.Dir(path), err))
	}

	lines, err := readLines(path)
	if err != nil {
		return "", err
	}

	lines = dropPrefixed(lines, "VLT_SYNC_TOKEN=")
	lines = append(lines, "VLT_SYNC_TOKEN="+token)
	if serverURL != "" {
		lines = dropPrefixed(lines, "VLT_VAULT_URL=")
		lines = append(lines, "VLT_VAULT_URL="+serverURL)
	}

	body := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		return "", vaulterrors.Wrap(vaulterrors.ErrConfig, fmt.Errorf("write %s: %w", path, err))
	}
	return path, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ErrConfig, fmt.Errorf("read %s: %w", path, err))
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func dropPrefixed(lines []string, prefix string) []string {
	out := lines[:0]
	for _, l := range lines {
		if !strings.HasPrefix(l, prefix) {
			out = append(out, l)
		}
	}
	return out
}
