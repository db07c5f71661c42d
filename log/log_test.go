package log

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/squareup/pqstream/errors"
	"github.com/stretchr/testify/require"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	level := log.GetLevel()
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(level)
		log.SetFormatter(&log.TextFormatter{})
	})
}

func TestConfigureLevelAndFormat(t *testing.T) {
	restoreLogger(t)
	cfg := &Config{Format: "json", Level: "debug", File: "-"}
	require.NoError(t, cfg.Configure())
	require.Equal(t, log.DebugLevel, log.GetLevel())
	_, ok := log.StandardLogger().Formatter.(*log.JSONFormatter)
	require.True(t, ok)
}

func TestConfigureFile(t *testing.T) {
	restoreLogger(t)
	path := filepath.Join(t.TempDir(), "pqstream.log")
	cfg := &Config{Format: "text", Level: "info", File: path}
	require.NoError(t, cfg.Configure())
	log.Info("written to file")
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "written to file")
}

func TestConfigureInvalid(t *testing.T) {
	restoreLogger(t)
	err := (&Config{Format: "xml", Level: "info"}).Configure()
	require.True(t, errors.HasCode(err, errors.InvalidConfiguration))

	err = (&Config{Format: "text", Level: "loud"}).Configure()
	require.True(t, errors.HasCode(err, errors.InvalidConfiguration))
}
