package result

import (
	"context"

	"github.com/squareup/pqstream/common"
	"github.com/squareup/pqstream/errors"
	"github.com/squareup/pqstream/interruptor"
)

// DefaultInitialCapacity is the number of rows allocated up front when fetching without a limit.
const DefaultInitialCapacity = 100

// Materializer pulls rows from a bound ResultStream into typed column buffers.
type Materializer struct {
	InitialCapacity int
}

func NewMaterializer() *Materializer {
	return &Materializer{InitialCapacity: DefaultInitialCapacity}
}

// Fetch pulls rows from rs into typed columns using the default Materializer.
func Fetch(ctx context.Context, rs *ResultStream, nMax int) (*common.Columns, error) {
	return NewMaterializer().Fetch(ctx, rs, nMax)
}

// Fetch pulls at most nMax rows from rs into typed columns. A negative nMax fetches every remaining row, doubling the
// buffers as they fill up. When nMax rows have been read the next row stays with the stream for the following call.
// The returned columns are trimmed to the number of rows read.
func (m *Materializer) Fetch(ctx context.Context, rs *ResultStream, nMax int) (*common.Columns, error) {
	if !rs.Bound() {
		return nil, errors.NewNotBoundError()
	}
	if !rs.Active() {
		return nil, errors.NewInactiveStreamError()
	}

	n := nMax
	if nMax < 0 {
		n = m.InitialCapacity
	}
	cols := common.NewColumnsFactory(rs.Schema()).NewColumns(n)

	i := 0
	row, err := rs.NextRow(ctx)
	if err != nil {
		return nil, err
	}
	for row.HasData() {
		if i >= n {
			if nMax >= 0 {
				break
			}
			n *= 2
			if n == 0 {
				n = 1
			}
			cols.Resize(n)
		}

		for j := 0; j < cols.ColumnCount(); j++ {
			row.setValue(cols.Column(j), i, j)
		}
		rs.Advance()
		i++

		if row, err = rs.NextRow(ctx); err != nil {
			return nil, err
		}
		if err := interruptor.MaybeInterrupt(ctx, i); err != nil {
			return nil, err
		}
	}

	// Trim back to what we actually used
	if i != cols.RowCount() {
		cols.Resize(i)
	}
	return cols, nil
}
