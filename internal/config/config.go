package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Catalog CatalogConfig
	LLM     LLMConfig
	History HistoryConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host     string
	Port     int
	APIToken string
}

type StorageConfig struct {
	Driver  string
	DSN     string
	DataDir string
}

// CatalogConfig points the relay at a catalog read API. An empty BaseURL
// makes the relay read the local store directly.
type CatalogConfig struct {
	BaseURL string
	Timeout time.Duration
}

type LLMConfig struct {
	Provider string
	Model    string
	BaseURL  string
	Timeout  time.Duration
	APIKey   string
}

// HistoryConfig enables the Redis query log when RedisAddr is set.
type HistoryConfig struct {
	RedisAddr  string
	MaxEntries int
}

type LogConfig struct {
	Level  string
	Format string
}

// Addr is the server listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BaseURL is the URL CLI commands use to reach a running server.
func (s ServerConfig) BaseURL() string {
	host := s.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, s.Port)
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Storage: StorageConfig{
			Driver:  "sqlite",
			DataDir: defaultDataDir(),
		},
		Catalog: CatalogConfig{
			Timeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			Provider: "openrouter",
			Timeout:  30 * time.Second,
		},
		History: HistoryConfig{
			MaxEntries: 1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration in increasing precedence: defaults, the JSON file
// at ConfigFilePath, a .env file in the working directory, PARTSRELAY_*
// environment variables. Secrets not set through the environment are read
// from SecretsFilePath. A missing model key is not an error; it disables the
// model.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return loadWith(newFileBackend(ConfigFilePath()), secretsFile{path: SecretsFilePath()})
}

// loadDotEnv exports variables from path without overriding ones already set.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func loadWith(b ConfigBackend, secrets secretReader) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, secrets)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.driver is postgres but storage.dsn is empty; set PARTSRELAY_STORAGE_DSN or DATABASE_URL")
		}
	default:
		return fmt.Errorf("invalid storage.driver %q: want sqlite or postgres", c.Storage.Driver)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openrouter", "gemini", "ollama":
	default:
		return fmt.Errorf("invalid llm.provider %q: want openrouter, gemini or ollama", c.LLM.Provider)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q", c.Log.Format)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}
