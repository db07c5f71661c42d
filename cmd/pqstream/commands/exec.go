package commands

import (
	"context"

	"github.com/squareup/pqstream/client"
)

type ExecCommand struct {
	Statement string   `arg:"" help:"The statement to execute"`
	Params    []string `arg:"" optional:"" help:"Values for the statement's $n placeholders, in order"`
	Null      string   `help:"Param value that is sent as NULL" default:"\\N"`
}

func (c *ExecCommand) Run(cl *client.Client) error {
	params := make([]*string, len(c.Params))
	for i := range c.Params {
		if c.Params[i] != c.Null {
			params[i] = &c.Params[i]
		}
	}
	return runInterruptible(func(ctx context.Context) error {
		return sendStatement(ctx, cl, c.Statement, params)
	})
}
