package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// secretReader abstracts the secrets file for testing.
type secretReader interface {
	Get(key string) (string, error)
}

// SecretsFilePath is $XDG_DATA_HOME/partsrelay/secrets.json, a flat JSON
// object keyed by secret config key (e.g. "llm.api_key").
func SecretsFilePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "partsrelay", "secrets.json")
}

type secretsFile struct {
	path string
}

func (f secretsFile) Get(key string) (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", fmt.Errorf("secrets file not available: %w", err)
	}
	var secrets map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return "", fmt.Errorf("parsing secrets file: %w", err)
	}
	val, ok := secrets[key]
	if !ok {
		return "", fmt.Errorf("secret %q not found", key)
	}
	return val, nil
}
