package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/squareup/pqstream/client"
	"github.com/squareup/pqstream/errors"
	"github.com/squareup/pqstream/interruptor"
)

var stdout io.Writer = os.Stdout

// runInterruptible runs fn with a context that is cancelled when the process receives an interrupt.
func runInterruptible(fn func(ctx context.Context) error) error {
	intr, ctx := interruptor.New(context.Background())
	defer intr.Release()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigs:
			intr.Interrupt()
		case <-done:
		}
	}()
	err := fn(ctx)
	if intr.Interrupted() {
		log.Debug("statement was interrupted")
	}
	return err
}

func sendStatement(ctx context.Context, cl *client.Client, statement string, params []*string) error {
	ch, err := cl.ExecuteStatement(ctx, statement, params)
	if err != nil {
		return errors.WithStack(err)
	}
	for line := range ch {
		if _, err := fmt.Fprintln(stdout, line); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
