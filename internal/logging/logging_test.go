package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/workgraph/internal/config"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "workgraph.log")

	logger, closer, err := New("workgraph", config.LogConfig{Level: "debug", JSON: true, Path: path})
	require.NoError(t, err)

	logger.Named("saver").Debug("snapshot saved", "run", "r1", "reset", 2)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"@message":"snapshot saved"`)
	assert.Contains(t, string(data), `"@module":"workgraph.saver"`)
	assert.Contains(t, string(data), `"run":"r1"`)
}

func TestNewLevels(t *testing.T) {
	logger, _, err := New("wg", config.LogConfig{})
	require.NoError(t, err)
	assert.Equal(t, hclog.Info, logger.GetLevel())

	logger, _, err = New("wg", config.LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.True(t, logger.IsWarn())
	assert.False(t, logger.IsInfo())

	_, _, err = New("wg", config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestOrNull(t *testing.T) {
	assert.NotNil(t, OrNull(nil))
	l := hclog.NewNullLogger()
	assert.Equal(t, l, OrNull(l))
}
