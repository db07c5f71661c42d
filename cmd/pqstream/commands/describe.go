package commands

import (
	"context"

	"github.com/squareup/pqstream/client"
)

type DescribeCommand struct {
	Statement string `arg:"" help:"The statement to describe"`
}

func (c *DescribeCommand) Run(cl *client.Client) error {
	return cl.DescribeStatement(context.Background(), c.Statement, stdout)
}
