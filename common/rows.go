package common

import (
	"encoding/hex"
	"strconv"
	"time"
)

// Column is a typed buffer holding the values of one result column. Only the slice matching the column's type is
// used; Nulls tracks which positions hold a missing value.
type Column struct {
	Name string
	Type ColumnType

	Ints     []int64
	Floats   []float64
	Strings  []string
	Logicals []Logical
	Blobs    [][]byte
	Nulls    []bool

	n int
}

// Columns is a set of column buffers sharing a single length.
type Columns struct {
	Schema ColumnSchema
	cols   []*Column
	n      int
}

// ColumnsFactory caches the schema so we can cheaply create Columns for each fetch
type ColumnsFactory struct {
	Schema ColumnSchema
}

func NewColumnsFactory(schema ColumnSchema) *ColumnsFactory {
	return &ColumnsFactory{Schema: schema}
}

// NewColumns allocates buffers for every column in the schema with the given length.
func (cf *ColumnsFactory) NewColumns(capacity int) *Columns {
	cols := make([]*Column, len(cf.Schema))
	for i, ci := range cf.Schema {
		cols[i] = newColumn(ci, capacity)
	}
	return &Columns{Schema: cf.Schema, cols: cols, n: capacity}
}

func newColumn(ci ColumnInfo, capacity int) *Column {
	c := &Column{Name: ci.Name, Type: ci.Type}
	c.Resize(capacity)
	return c
}

func (c *Columns) Column(colIndex int) *Column {
	return c.cols[colIndex]
}

func (c *Columns) ColumnCount() int {
	return len(c.cols)
}

func (c *Columns) RowCount() int {
	return c.n
}

// Resize changes the length of every column. Values below the new length are preserved; the backing arrays are
// reallocated so no spare capacity is retained.
func (c *Columns) Resize(n int) {
	for _, col := range c.cols {
		col.Resize(n)
	}
	c.n = n
}

func (c *Column) Len() int {
	return c.n
}

func (c *Column) Resize(n int) {
	if n < 0 {
		n = 0
	}
	c.Nulls = resize(c.Nulls, n)
	switch c.Type {
	case TypeInteger:
		c.Ints = resize(c.Ints, n)
	case TypeReal, TypeDate, TypeTimestamp, TypeTimestampTZ, TypeTime:
		c.Floats = resize(c.Floats, n)
	case TypeLogical:
		c.Logicals = resize(c.Logicals, n)
	case TypeBlob:
		c.Blobs = resize(c.Blobs, n)
	default:
		c.Strings = resize(c.Strings, n)
	}
	c.n = n
}

func resize[T any](s []T, n int) []T {
	if len(s) == n && cap(s) == n {
		return s
	}
	out := make([]T, n)
	copy(out, s)
	return out
}

// SetNull stores the missing value sentinel for the column type at rowIndex.
func (c *Column) SetNull(rowIndex int) {
	c.Nulls[rowIndex] = true
	switch c.Type {
	case TypeInteger:
		c.Ints[rowIndex] = NullInt
	case TypeReal, TypeDate, TypeTimestamp, TypeTimestampTZ, TypeTime:
		c.Floats[rowIndex] = NullFloat()
	case TypeLogical:
		c.Logicals[rowIndex] = LogicalNull
	case TypeBlob:
		c.Blobs[rowIndex] = nil
	default:
		c.Strings[rowIndex] = ""
	}
}

func (c *Column) SetInt64(rowIndex int, val int64) {
	c.Nulls[rowIndex] = false
	c.Ints[rowIndex] = val
}

func (c *Column) SetFloat64(rowIndex int, val float64) {
	c.Nulls[rowIndex] = false
	c.Floats[rowIndex] = val
}

func (c *Column) SetString(rowIndex int, val string) {
	c.Nulls[rowIndex] = false
	c.Strings[rowIndex] = val
}

func (c *Column) SetLogical(rowIndex int, val Logical) {
	c.Nulls[rowIndex] = val == LogicalNull
	c.Logicals[rowIndex] = val
}

func (c *Column) SetBlob(rowIndex int, val []byte) {
	c.Nulls[rowIndex] = val == nil
	c.Blobs[rowIndex] = val
}

func (c *Column) IsNull(rowIndex int) bool {
	return c.Nulls[rowIndex]
}

// Format renders the value at rowIndex for display. Date/time columns are shown in their wire format.
func (c *Column) Format(rowIndex int) string {
	if c.IsNull(rowIndex) {
		return "null"
	}
	switch c.Type {
	case TypeInteger:
		return strconv.FormatInt(c.Ints[rowIndex], 10)
	case TypeReal:
		return strconv.FormatFloat(c.Floats[rowIndex], 'f', -1, 64)
	case TypeLogical:
		return strconv.FormatBool(c.Logicals[rowIndex] == LogicalTrue)
	case TypeBlob:
		return `\x` + hex.EncodeToString(c.Blobs[rowIndex])
	case TypeDate:
		secs := int64(c.Floats[rowIndex] * secondsPerDay)
		return time.Unix(secs, 0).UTC().Format("2006-01-02")
	case TypeTimestamp:
		return formatEpochSeconds(c.Floats[rowIndex], time.Local)
	case TypeTimestampTZ:
		return formatEpochSeconds(c.Floats[rowIndex], time.UTC)
	case TypeTime:
		d := time.Duration(c.Floats[rowIndex] * float64(time.Second))
		return time.Unix(0, 0).UTC().Add(d).Format("15:04:05.999999")
	default:
		return c.Strings[rowIndex]
	}
}

const secondsPerDay = 24 * 60 * 60

func formatEpochSeconds(secs float64, loc *time.Location) string {
	whole := int64(secs)
	nanos := int64((secs - float64(whole)) * 1e9)
	return time.Unix(whole, nanos).In(loc).Format("2006-01-02 15:04:05.999999")
}
