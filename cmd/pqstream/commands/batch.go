package commands

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/squareup/pqstream/client"
	"github.com/squareup/pqstream/errors"
)

type BatchCommand struct {
	Statement string `arg:"" help:"The statement to execute once per row"`
	File      string `arg:"" type:"existingfile" help:"CSV file with one row of params per line"`
	Null      string `help:"Field value that is sent as NULL" default:"\\N"`
}

func (c *BatchCommand) Run(cl *client.Client) error {
	f, err := os.Open(c.File)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		_ = f.Close()
	}()
	params, err := readParamColumns(f, c.Null)
	if err != nil {
		return err
	}
	return runInterruptible(func(ctx context.Context) error {
		n, err := cl.ExecuteBatch(ctx, c.Statement, params)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "%d rows executed\n", n)
		return errors.WithStack(err)
	})
}

// readParamColumns reads CSV records and transposes them into one slice of values per param.
func readParamColumns(r io.Reader, null string) ([][]*string, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	params := make([][]*string, len(records[0]))
	for j := range params {
		params[j] = make([]*string, len(records))
	}
	for i, record := range records {
		for j := range record {
			if record[j] != null {
				params[j][i] = &record[j]
			}
		}
	}
	return params, nil
}
