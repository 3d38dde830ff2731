package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
	Fetch   FetchConfig   `toml:"fetch"`
	Weather WeatherConfig `toml:"weather"`
	Radar   RadarConfig   `toml:"radar"`
	Storage StorageConfig `toml:"storage"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json, console
}

// FetchConfig holds settings shared by all flight fetchers.
type FetchConfig struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxResult      int    `toml:"max_result"`
	MaxFetchPage   int    `toml:"max_fetch_page"`
	Headless       bool   `toml:"headless"`
	ScreenshotDir  string `toml:"screenshot_dir"`
}

// Timeout returns the per-request timeout for fetcher HTTP clients.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WeatherConfig holds the METAR client settings.
type WeatherConfig struct {
	APIBaseURL         string `toml:"api_base_url"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	CacheExpiryMinutes int    `toml:"cache_expiry_minutes"`
}

// RadarConfig holds the radar-station directory settings.
type RadarConfig struct {
	BaseURL        string `toml:"base_url"`
	StationFile    string `toml:"station_file"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// StorageConfig holds the SQLite settings.
type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			CORSAllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Fetch: FetchConfig{
			TimeoutSeconds: 15,
			MaxResult:      20,
			MaxFetchPage:   3,
			Headless:       true,
			ScreenshotDir:  "data/temp",
		},
		Weather: WeatherConfig{
			APIBaseURL:         "https://aviationweather.gov/api/data/metar",
			TimeoutSeconds:     10,
			CacheExpiryMinutes: 10,
		},
		Radar: RadarConfig{
			BaseURL:        "http://www.nmc.cn",
			StationFile:    "data/cma/cma-radar-stations.json",
			TimeoutSeconds: 15,
		},
		Storage: StorageConfig{
			DBPath: "data/next-train-bot.db",
		},
	}
}

// Load reads the configuration file at path on top of the defaults.
// A missing file is not an error; the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}
