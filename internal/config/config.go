package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config drives the server and CLI front-ends. The embeddable core takes all
// of its parameters through the API and never reads this.
type Config struct {
	// Listen is the server bind address, e.g. ":8080".
	Listen string `yaml:"listen"`
	// DataPath is the database file that serve loads at startup and that the
	// server's save/load endpoints use when a request names no path. The
	// ingest, search and info commands take their file from --db instead.
	DataPath string `yaml:"data_path"`
	// Seed fixes the RNG seed for index builds.
	Seed int64 `yaml:"seed"`

	// CacheSize bounds the server's search-result cache (entries).
	CacheSize int `yaml:"cache_size"`
	// RateLimit caps request throughput (requests/second); 0 disables it.
	RateLimit float64 `yaml:"rate_limit"`
	// RateBurst is the rate limiter burst size.
	RateBurst int `yaml:"rate_burst"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:    ":8080",
		DataPath:  "vegamdb.bin",
		Seed:      42,
		CacheSize: 1024,
		RateBurst: 16,
		LogLevel:  "info",
	}
}

// FromFile reads a YAML config, filling unset fields with defaults.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = Default().CacheSize
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = Default().RateBurst
	}
	return cfg, nil
}
