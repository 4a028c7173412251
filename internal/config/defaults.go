package config

import (
	"path/filepath"
	"time"
)

// DefaultConfig returns the built-in configuration: a SQLite store and the
// descriptors file under .workgraph/, conservative engine retries and an
// info-level text log.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    filepath.Join(".workgraph", "runs.db"),
		},
		Engine: EngineConfig{
			StatePath:        filepath.Join(".workgraph", "state.db"),
			ResetConcurrency: 4,
			Retry: RetryConfig{
				InitialInterval:     Duration(100 * time.Millisecond),
				MaxInterval:         Duration(5 * time.Second),
				MaxElapsedTime:      Duration(30 * time.Second),
				Multiplier:          2.0,
				RandomizationFactor: 0.5,
			},
			Breaker: BreakerConfig{
				MaxRequests:         3,
				Timeout:             Duration(30 * time.Second),
				ConsecutiveFailures: 5,
			},
		},
		Registry: RegistryConfig{
			Path: filepath.Join(".workgraph", "descriptors.yaml"),
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8420",
		},
		Viewer: ViewerConfig{
			PollInterval: Duration(2 * time.Second),
		},
	}
}
