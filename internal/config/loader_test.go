package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		global        string
		globalFile    string
		project       string
		projectFile   string
		expectBackend string
		expectLevel   string
		expectAddr    string
		expectRetries time.Duration
	}{
		{
			name:          "No config files - returns defaults",
			expectBackend: "sqlite",
			expectLevel:   "info",
			expectAddr:    "127.0.0.1:8420",
			expectRetries: 100 * time.Millisecond,
		},
		{
			name:          "Global JSON only",
			globalFile:    "config.json",
			global:        `{"store": {"backend": "badger", "path": "/tmp/wg"}, "log": {"level": "debug"}}`,
			expectBackend: "badger",
			expectLevel:   "debug",
			expectAddr:    "127.0.0.1:8420",
			expectRetries: 100 * time.Millisecond,
		},
		{
			name:        "Project YAML only",
			projectFile: "config.yaml",
			project: `
server:
  addr: ":9000"
engine:
  retry:
    initial_interval: 250ms
`,
			expectBackend: "sqlite",
			expectLevel:   "info",
			expectAddr:    ":9000",
			expectRetries: 250 * time.Millisecond,
		},
		{
			name:          "Project overrides global - project wins",
			globalFile:    "config.json",
			global:        `{"store": {"backend": "badger"}, "log": {"level": "debug"}}`,
			projectFile:   "config.yml",
			project:       "store:\n  backend: postgres\n  dsn: postgres://localhost/wg\n",
			expectBackend: "postgres",
			expectLevel:   "debug",
			expectAddr:    "127.0.0.1:8420",
			expectRetries: 100 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			globalPath := filepath.Join(tmpDir, "global", "missing.json")
			projectPath := filepath.Join(tmpDir, "project", "missing.json")
			if tt.globalFile != "" {
				globalPath = filepath.Join(tmpDir, "global", tt.globalFile)
				writeFile(t, globalPath, tt.global)
			}
			if tt.projectFile != "" {
				projectPath = filepath.Join(tmpDir, "project", tt.projectFile)
				writeFile(t, projectPath, tt.project)
			}

			cfg, err := Load(globalPath, projectPath)
			require.NoError(t, err)

			assert.Equal(t, tt.expectBackend, cfg.Store.Backend)
			assert.Equal(t, tt.expectLevel, cfg.Log.Level)
			assert.Equal(t, tt.expectAddr, cfg.Server.Addr)
			assert.Equal(t, tt.expectRetries, cfg.Engine.Retry.InitialInterval.Std())
			// Untouched sections keep their defaults.
			assert.Equal(t, 4, cfg.Engine.ResetConcurrency)
		})
	}
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "bad json", file: "config.json", content: `{"store": `},
		{name: "bad yaml", file: "config.yaml", content: "store: [unclosed"},
		{name: "bad duration", file: "config.json", content: `{"engine": {"retry": {"max_interval": "soon"}}}`},
		{name: "unknown extension", file: "config.toml", content: `store = 1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			writeFile(t, path, tt.content)

			_, err := Load("", path)
			assert.Error(t, err)
		})
	}
}

func TestFindConfigFilePrefersYAML(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", findConfigFile(dir))

	writeFile(t, filepath.Join(dir, "config.json"), `{}`)
	assert.Equal(t, filepath.Join(dir, "config.json"), findConfigFile(dir))

	writeFile(t, filepath.Join(dir, "config.yaml"), `{}`)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), findConfigFile(dir))
}
