package main

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/squareup/pqstream/errors"
	"github.com/squareup/pqstream/metrics/prometheus"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, hcl string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pqstream.hcl")
	require.NoError(t, os.WriteFile(path, []byte(hcl), 0o600))
	return path
}

func resetLogger(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	})
}

func TestParseConfigFile(t *testing.T) {
	resetLogger(t)
	path := writeConfig(t, `
dsn = "postgres://app@db.internal:5432/app"
page-size = 250
max-line-width = 80
metrics-enabled = true
metrics-addr = "localhost:9200"
log-level = "debug"
`)
	kctx, cfg, err := parse([]string{"--config", path, "describe", "select 1"})
	require.NoError(t, err)
	require.Equal(t, "describe <statement>", kctx.Command())
	require.Equal(t, "postgres://app@db.internal:5432/app", cfg.Client.DSN)
	require.Equal(t, 250, cfg.Client.PageSize)
	require.Equal(t, 80, cfg.Client.MaxLineWidth)
	require.True(t, cfg.Client.MetricsEnabled)
	require.Equal(t, "localhost:9200", cfg.Client.MetricsAddr)
	require.Equal(t, log.DebugLevel, log.GetLevel())
	require.Equal(t, "select 1", cfg.Describe.Statement)

	_, ok := newMetricsFactory(cfg.Client).(*prometheus.Factory)
	require.True(t, ok)
}

func TestFlagsOverrideDefaults(t *testing.T) {
	resetLogger(t)
	_, cfg, err := parse([]string{"--dsn", "postgres://localhost/db", "exec", "select $1", "7", `\N`})
	require.NoError(t, err)
	require.Equal(t, 10000, cfg.Client.PageSize)
	require.Equal(t, 120, cfg.Client.MaxLineWidth)
	require.Equal(t, []string{"7", `\N`}, cfg.Exec.Params)

	_, ok := newMetricsFactory(cfg.Client).(*prometheus.Factory)
	require.False(t, ok)
}

func TestParseInvalidConfig(t *testing.T) {
	resetLogger(t)
	_, _, err := parse([]string{"--dsn", "postgres://localhost/db", "--page-size", "0", "describe", "select 1"})
	require.True(t, errors.HasCode(err, errors.InvalidConfiguration))

	_, _, err = parse([]string{"describe", "select 1"})
	require.True(t, errors.HasCode(err, errors.InvalidConfiguration))
}
