package conf

import (
	"fmt"

	"github.com/squareup/pqstream/errors"
)

const (
	DefaultPageSize     = 10000
	DefaultMaxLineWidth = 120
	DefaultMetricsAddr  = "localhost:2112"

	MinLineWidth = 10
	MaxLineWidth = 10000
)

type Config struct {
	DSN            string `json:"dsn,omitempty" help:"PostgreSQL connection string or URL"`
	PageSize       int    `json:"page_size,omitempty" help:"Number of rows materialized per fetch" default:"10000"`
	MaxLineWidth   int    `json:"max_line_width,omitempty" help:"Maximum width of a result line in the shell" default:"120"`
	MetricsEnabled bool   `json:"metrics_enabled,omitempty" help:"Export client metrics over HTTP"`
	MetricsAddr    string `json:"metrics_addr,omitempty" help:"Listen address of the metrics HTTP server" default:"localhost:2112"`
}

func (c *Config) Validate() error {
	if c.DSN == "" {
		return errors.NewInvalidConfigurationError("DSN must be specified")
	}
	if c.PageSize < 1 {
		return errors.NewInvalidConfigurationError("PageSize must be >= 1")
	}
	if c.MaxLineWidth < MinLineWidth || c.MaxLineWidth > MaxLineWidth {
		return errors.NewInvalidConfigurationError(fmt.Sprintf("MaxLineWidth must be in the range %d to %d",
			MinLineWidth, MaxLineWidth))
	}
	if c.MetricsEnabled && c.MetricsAddr == "" {
		return errors.NewInvalidConfigurationError("MetricsAddr must be specified")
	}
	return nil
}

func NewDefaultConfig() *Config {
	return &Config{
		PageSize:     DefaultPageSize,
		MaxLineWidth: DefaultMaxLineWidth,
		MetricsAddr:  DefaultMetricsAddr,
	}
}

// NewTestConfig returns a valid configuration pointing at dsn.
func NewTestConfig(dsn string) *Config {
	cnf := NewDefaultConfig()
	cnf.DSN = dsn
	return cnf
}
