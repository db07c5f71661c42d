package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"
	konghcl "github.com/alecthomas/kong-hcl/v2"
	log "github.com/sirupsen/logrus"
	"github.com/squareup/pqstream/client"
	"github.com/squareup/pqstream/cmd/pqstream/commands"
	"github.com/squareup/pqstream/conf"
	"github.com/squareup/pqstream/errors"
	plog "github.com/squareup/pqstream/log"
	"github.com/squareup/pqstream/metrics"
	"github.com/squareup/pqstream/metrics/prometheus"
	"github.com/squareup/pqstream/pgwire"
)

type arguments struct {
	Config kong.ConfigFlag `help:"Path to config file" type:"existingfile"`
	Log    plog.Config     `help:"Configuration for the logger" embed:"" prefix:"log-"`
	Client conf.Config     `help:"Client configuration" embed:"" prefix:""`

	Shell    commands.ShellCommand    `cmd:"" help:"Start an interactive SQL shell."`
	Exec     commands.ExecCommand     `cmd:"" help:"Execute a single statement and print its result."`
	Batch    commands.BatchCommand    `cmd:"" help:"Execute a statement once per row of a CSV file."`
	Describe commands.DescribeCommand `cmd:"" help:"Describe the params and result columns of a statement."`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func parse(args []string) (*kong.Context, *arguments, error) {
	cfg := &arguments{}
	parser, err := kong.New(cfg,
		kong.Name("pqstream"),
		kong.Description("Stream query results from PostgreSQL."),
		kong.Configuration(konghcl.Loader))
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if err := cfg.Log.Configure(); err != nil {
		return nil, nil, err
	}
	if err := cfg.Client.Validate(); err != nil {
		return nil, nil, err
	}
	return kctx, cfg, nil
}

func newMetricsFactory(cnf conf.Config) metrics.Factory {
	if cnf.MetricsEnabled {
		return prometheus.NewFactory(cnf)
	}
	return metrics.NewNoopFactory()
}

func run(args []string) error {
	kctx, cfg, err := parse(args)
	if err != nil {
		return err
	}
	ctx := context.Background()
	pg, err := pgwire.Connect(ctx, cfg.Client.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := pg.Close(ctx); err != nil {
			log.Debugf("failed to close connection %v", err)
		}
	}()
	cl := client.New(cfg.Client, pg, newMetricsFactory(cfg.Client))
	if err := cl.Start(); err != nil {
		return err
	}
	defer func() {
		if err := cl.Stop(); err != nil {
			log.Debugf("failed to stop client %v", err)
		}
	}()
	return errors.WithStack(kctx.Run(cl))
}
