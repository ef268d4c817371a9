package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/invoica/backend/config"
)

func TestNew_WritesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoica.log")
	log := New(config.LogConfig{Level: "debug", FilePath: path, MaxSizeMB: 1})

	log.Debug("hello from test")
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "hello from test")
	require.Contains(t, string(raw), `"timestamp"`)
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	log := New(config.LogConfig{Level: "loud"})
	require.False(t, log.Core().Enabled(-1))
	require.True(t, log.Core().Enabled(0))
}
