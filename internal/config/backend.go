package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ConfigBackend is persistent storage for the non-secret keys. Values are
// typed by the key table: strings, integers and durations.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	GetDuration(key string) (val time.Duration, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	SetDuration(key string, val time.Duration) error
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "partsrelay-data"
		}
	}
	return filepath.Join(dir, "partsrelay")
}

// ConfigFilePath is the JSON config file location,
// $XDG_CONFIG_HOME/partsrelay/config.json.
func ConfigFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "partsrelay", "config.json")
}

// fileBackend keeps config as one flat JSON object keyed by dotted key
// names, e.g. {"server.port": 8080, "llm.timeout": "30s"}. A file that cannot
// be read or parsed is logged and treated as empty so defaults still apply.
type fileBackend struct {
	path string
	data map[string]any
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, data: make(map[string]any)}
	b.load()
	return b
}

func (b *fileBackend) load() {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("config file unreadable, using defaults", "path", b.path, "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, &b.data); err != nil {
		slog.Warn("config file is not valid JSON, using defaults", "path", b.path, "error", err)
		b.data = make(map[string]any)
	}
}

// save writes through a temp file and rename so a crash mid-write never
// leaves a truncated config behind.
func (b *fileBackend) save() error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return os.Rename(tmp.Name(), b.path)
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	switch val := v.(type) {
	case string:
		return val, true, nil
	case float64, bool:
		return fmt.Sprintf("%v", val), true, nil
	default:
		return "", true, fmt.Errorf("%s: expected a string, got %T", key, v)
	}
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case float64:
		if val < math.MinInt || val > math.MaxInt || val != math.Trunc(val) {
			return 0, true, fmt.Errorf("%s: %v is not an integer", key, val)
		}
		return int(val), true, nil
	case string:
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, true, fmt.Errorf("%s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s: expected an integer, got %T", key, v)
	}
}

// GetDuration accepts a Go duration string ("30s", "1m30s") or a bare
// number of seconds.
func (b *fileBackend) GetDuration(key string) (time.Duration, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case string:
		if val == "" {
			return 0, false, nil
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, true, fmt.Errorf("%s: %w", key, err)
		}
		return d, true, nil
	case float64:
		if val < 0 {
			return 0, true, fmt.Errorf("%s: negative duration %v", key, val)
		}
		return time.Duration(val * float64(time.Second)), true, nil
	default:
		return 0, true, fmt.Errorf("%s: expected a duration, got %T", key, v)
	}
}

func (b *fileBackend) SetString(key, val string) error {
	b.data[key] = val
	return b.save()
}

func (b *fileBackend) SetInt(key string, val int) error {
	b.data[key] = val
	return b.save()
}

func (b *fileBackend) SetDuration(key string, val time.Duration) error {
	b.data[key] = val.String()
	return b.save()
}
