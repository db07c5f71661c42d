package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/squareup/pqstream/client"
	"github.com/squareup/pqstream/errors"
)

type ShellCommand struct {
	VI bool `help:"Enable VI mode."`
}

func (c *ShellCommand) Run(cl *client.Client) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return errors.WithStack(err)
	}

	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:            filepath.Join(home, ".pqstream.history"),
		DisableAutoSaveHistory: true,
		VimMode:                c.VI,
		Stdout:                 stdout,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		_ = rl.Close()
	}()
	for {
		statement, err := readStatement(rl)
		if err == io.EOF || err == readline.ErrInterrupt {
			// CTRL-D or CTRL-C at the prompt
			return nil
		}
		if err != nil {
			return errors.WithStack(err)
		}
		_ = rl.SaveHistory(statement)

		if err := runInterruptible(func(ctx context.Context) error {
			return sendStatement(ctx, cl, statement, nil)
		}); err != nil {
			return err
		}
	}
}

// readStatement gathers a multi-line statement terminated by a ;
func readStatement(rl *readline.Instance) (string, error) {
	rl.SetPrompt("pqstream> ")
	var cmd []string
	for {
		line, err := rl.Readline()
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cmd = append(cmd, line)
		if strings.HasSuffix(line, ";") {
			return strings.Join(cmd, " "), nil
		}
		rl.SetPrompt("          ")
	}
}
