package config

import (
	"fmt"
	"time"
)

// StoreConfig selects and locates the snapshot store.
type StoreConfig struct {
	// Backend is "sqlite", "badger" or "postgres".
	Backend string `json:"backend" yaml:"backend"`
	// Path is the file or directory used by the embedded backends.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// DSN is the postgres connection string.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// RetryConfig configures exponential backoff for engine resets.
type RetryConfig struct {
	InitialInterval     Duration `json:"initial_interval" yaml:"initial_interval"`
	MaxInterval         Duration `json:"max_interval" yaml:"max_interval"`
	MaxElapsedTime      Duration `json:"max_elapsed_time" yaml:"max_elapsed_time"`
	Multiplier          float64  `json:"multiplier" yaml:"multiplier"`
	RandomizationFactor float64  `json:"randomization_factor" yaml:"randomization_factor"`
}

// BreakerConfig configures the circuit breaker in front of the engine.
type BreakerConfig struct {
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32 `json:"max_requests" yaml:"max_requests"`
	// Timeout is how long the breaker stays open before probing.
	Timeout Duration `json:"timeout" yaml:"timeout"`
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32 `json:"consecutive_failures" yaml:"consecutive_failures"`
}

// EngineConfig configures the execution-engine boundary.
type EngineConfig struct {
	// StatePath is the SQLite file holding task execution states.
	StatePath string `json:"state_path" yaml:"state_path"`
	// ResetConcurrency bounds the resets issued in parallel by one save.
	ResetConcurrency int           `json:"reset_concurrency" yaml:"reset_concurrency"`
	Retry            RetryConfig   `json:"retry" yaml:"retry"`
	Breaker          BreakerConfig `json:"breaker" yaml:"breaker"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	JSON  bool   `json:"json,omitempty" yaml:"json,omitempty"`
	// Path is the log file; empty means stderr.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// RegistryConfig locates the task descriptors that submitted tasks are
// resolved against.
type RegistryConfig struct {
	// Path is a YAML or JSON descriptors file. A missing file leaves tasks
	// unresolved.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ViewerConfig configures the terminal viewer.
type ViewerConfig struct {
	// PollInterval is how often the viewer checks the store for a newer version.
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Config is the top-level configuration.
type Config struct {
	Store    StoreConfig    `json:"store" yaml:"store"`
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Registry RegistryConfig `json:"registry" yaml:"registry"`
	Log      LogConfig      `json:"log" yaml:"log"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Viewer   ViewerConfig   `json:"viewer" yaml:"viewer"`
}

// Duration is a time.Duration that encodes as a string such as "250ms".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}
