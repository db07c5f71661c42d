package result

import (
	"context"

	"github.com/squareup/pqstream/common"
	"github.com/squareup/pqstream/conn"
)

// Description is the shape of a statement as reported by the server.
type Description struct {
	NumParams int
	Schema    common.ColumnSchema
	Warnings  []error
}

// Describe prepares sql on c and reports its parameters and result columns. Unlike Prepare the statement is never
// executed, even when it takes no parameters. The connection is held only for the duration of the call.
func Describe(ctx context.Context, c conn.Conn, sql string) (*Description, error) {
	if err := c.CheckReady(); err != nil {
		return nil, err
	}
	rs := &ResultStream{conn: c}
	if err := c.RegisterActiveResult(rs); err != nil {
		return nil, err
	}
	defer c.ClearActiveResult()
	if err := rs.describe(ctx, sql); err != nil {
		return nil, err
	}
	return &Description{NumParams: rs.nparams, Schema: rs.schema, Warnings: rs.warnings}, nil
}
