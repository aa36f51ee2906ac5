package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	alias   string // fallback env var, consulted when env is unset
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "PARTSRELAY_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "PARTSRELAY_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "PARTSRELAY_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.driver", typ: kString, env: "PARTSRELAY_STORAGE_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Storage.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Driver },
	},
	{
		key: "storage.dsn", typ: kString, env: "PARTSRELAY_STORAGE_DSN", alias: "DATABASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Storage.DSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DSN },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PARTSRELAY_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "catalog.base_url", typ: kString, env: "PARTSRELAY_CATALOG_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Catalog.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.BaseURL },
	},
	{
		key: "catalog.timeout", typ: kDuration, env: "PARTSRELAY_CATALOG_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Catalog.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Catalog.Timeout },
	},
	{
		key: "llm.provider", typ: kString, env: "PARTSRELAY_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.model", typ: kString, env: "PARTSRELAY_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.base_url", typ: kString, env: "PARTSRELAY_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.timeout", typ: kDuration, env: "PARTSRELAY_LLM_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.LLM.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.LLM.Timeout },
	},
	{
		key: "llm.api_key", typ: kString, env: "PARTSRELAY_LLM_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "history.redis_addr", typ: kString, env: "PARTSRELAY_HISTORY_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.History.RedisAddr = v.(string) },
		extract: func(cfg Config) any { return cfg.History.RedisAddr },
	},
	{
		key: "history.max_entries", typ: kInt, env: "PARTSRELAY_HISTORY_MAX_ENTRIES",
		apply:   func(cfg *Config, v any) { cfg.History.MaxEntries = v.(int) },
		extract: func(cfg Config) any { return cfg.History.MaxEntries },
	},
	{
		key: "log.level", typ: kString, env: "PARTSRELAY_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "PARTSRELAY_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kDuration:
			v, ok, err := b.GetDuration(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw, name := lookupEnv(s)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		}
	}
}

func lookupEnv(s keySpec) (val, name string) {
	if v := os.Getenv(s.env); v != "" {
		return v, s.env
	}
	if s.alias != "" {
		if v := os.Getenv(s.alias); v != "" {
			return v, s.alias
		}
	}
	return "", ""
}

// applySecrets fills secrets still empty after the environment pass.
func applySecrets(cfg *Config, secrets secretReader) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg).(string) != "" {
			continue
		}
		if v, err := secrets.Get(s.key); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}
