package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Fetch       FetchConfig       `yaml:"fetch"`
	Cache       CacheConfig       `yaml:"cache"`
	Store       StoreConfig       `yaml:"store"`
	Watchlist   WatchlistConfig   `yaml:"watchlist"`
	Analyst     AnalystConfig     `yaml:"analyst"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type CredentialsConfig struct {
	AlphaVantageKey string `yaml:"alphavantage_key"`
	FredKey         string `yaml:"fred_key"`
}

type FetchConfig struct {
	TimeoutSec    int    `yaml:"timeout_sec"`
	MacroSeriesID string `yaml:"macro_series_id"`
}

type CacheConfig struct {
	Backend string `yaml:"backend"`
	TTLSec  int    `yaml:"ttl_sec"`
}

type StoreConfig struct {
	Sqlite SqliteConfig `yaml:"sqlite"`
}

type SqliteConfig struct {
	Path string `yaml:"path"`
}

type WatchlistConfig struct {
	Tickers            []string `yaml:"tickers"`
	RefreshIntervalSec int      `yaml:"refresh_interval_sec"`
}

type AnalystConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	ByAzure    bool   `yaml:"by_azure"`
	APIVersion string `yaml:"api_version"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

func Load(path string) (*Config, error) {
	cfg := Config{
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info"},
		Fetch: FetchConfig{
			TimeoutSec:    20,
			MacroSeriesID: "DGS10",
		},
		Cache: CacheConfig{
			Backend: "sqlite",
			TTLSec:  3600,
		},
		Store: StoreConfig{
			Sqlite: SqliteConfig{Path: "data/analyzer.db"},
		},
		Watchlist: WatchlistConfig{
			RefreshIntervalSec: 900,
		},
		Analyst: AnalystConfig{
			Enabled:   false,
			Model:     "gpt-4.1-mini",
			TimeoutMs: 10000,
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// runs on defaults plus env when no config file is present
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if cfg.Cache.Backend != "memory" && cfg.Cache.Backend != "sqlite" {
		return nil, fmt.Errorf("invalid cache backend: %q", cfg.Cache.Backend)
	}
	if cfg.Cache.TTLSec <= 0 {
		return nil, fmt.Errorf("invalid cache ttl_sec: %d", cfg.Cache.TTLSec)
	}
	if cfg.Fetch.TimeoutSec <= 0 {
		return nil, fmt.Errorf("invalid fetch timeout_sec: %d", cfg.Fetch.TimeoutSec)
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Server.Port = p
	}
	// the config file wins for credentials; the environment is the fallback
	if cfg.Credentials.AlphaVantageKey == "" {
		cfg.Credentials.AlphaVantageKey = os.Getenv("ALPHAVANTAGE_KEY")
	}
	if cfg.Credentials.FredKey == "" {
		cfg.Credentials.FredKey = os.Getenv("FRED_KEY")
	}
	return nil
}
