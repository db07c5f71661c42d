package common

import (
	"fmt"
	"math"

	"github.com/lib/pq/oid"
)

// ColumnType is the storage class a result column is decoded into.
type ColumnType int

const (
	TypeUnknown ColumnType = iota
	TypeInteger
	TypeReal
	TypeText
	TypeLogical
	TypeDate
	TypeTimestamp
	TypeTimestampTZ
	TypeTime
	TypeBlob
)

// AllColumnTypes lists every decodable ColumnType.
var AllColumnTypes = []ColumnType{
	TypeInteger, TypeReal, TypeText, TypeLogical, TypeDate, TypeTimestamp, TypeTimestampTZ, TypeTime, TypeBlob,
}

// Missing-value sentinels returned by typed getters for a NULL column value.
const (
	NullInt = math.MinInt64
)

func NullFloat() float64 {
	return math.NaN()
}

// Logical is a three-valued boolean.
type Logical int8

const (
	LogicalNull  Logical = -1
	LogicalFalse Logical = 0
	LogicalTrue  Logical = 1
)

// oidTypes maps the server type OIDs we know how to decode. Any other OID decodes as text.
var oidTypes = map[oid.Oid]ColumnType{
	oid.T_int8: TypeInteger,
	oid.T_int2: TypeInteger,
	oid.T_int4: TypeInteger,
	oid.T_oid:  TypeInteger,

	oid.T_numeric: TypeReal,
	oid.T_float8:  TypeReal,
	oid.T_float4:  TypeReal,
	oid.T_money:   TypeReal,

	oid.T_char:     TypeText,
	oid.T_name:     TypeText,
	oid.T_text:     TypeText,
	oid.T_json:     TypeText,
	oid.T_bpchar:   TypeText,
	oid.T_varchar:  TypeText,
	oid.T_interval: TypeText,
	oid.T_jsonb:    TypeText,
	oid.T_uuid:     TypeText,

	oid.T_date: TypeDate,

	oid.T_time:   TypeTime,
	oid.T_timetz: TypeTime,

	// timestamp without time zone is interpreted using the local calendar
	oid.T_timestamp: TypeTimestamp,
	// timestamp with time zone is interpreted using the UTC calendar
	oid.T_timestamptz: TypeTimestampTZ,

	oid.T_bool: TypeLogical,

	oid.T_bytea: TypeBlob,
	oid.T_void:  TypeBlob,
}

// ColumnTypeForOID returns the ColumnType for a server type OID. ok is false when the OID is not recognised, in which
// case TypeText is returned.
func ColumnTypeForOID(typeOID uint32) (colType ColumnType, ok bool) {
	colType, ok = oidTypes[oid.Oid(typeOID)]
	if !ok {
		return TypeText, false
	}
	return colType, true
}

// OIDTypeName returns the server's name for a type OID, if lib/pq knows it.
func OIDTypeName(typeOID uint32) string {
	name, ok := oid.TypeName[oid.Oid(typeOID)]
	if !ok {
		return "unknown"
	}
	return name
}

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "Integer"
	case TypeReal:
		return "Real"
	case TypeText:
		return "Text"
	case TypeLogical:
		return "Logical"
	case TypeDate:
		return "Date"
	case TypeTimestamp:
		return "Timestamp"
	case TypeTimestampTZ:
		return "TimestampTZ"
	case TypeTime:
		return "Time"
	case TypeBlob:
		return "Blob"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Label is the column description reported by ColumnInfo.
func (t ColumnType) Label() string {
	switch t {
	case TypeText:
		return "character"
	case TypeInteger:
		return "integer"
	case TypeReal:
		return "double"
	case TypeBlob:
		return "list"
	case TypeLogical:
		return "logical"
	case TypeDate:
		return "Date"
	case TypeTimestamp, TypeTimestampTZ:
		return "POSIXct"
	case TypeTime:
		return "hms"
	default:
		return "unknown"
	}
}

// Class is the semantic tag a presentation layer should attach to a fetched column. Columns which need no tag return
// the empty string.
func (t ColumnType) Class() string {
	switch t {
	case TypeDate:
		return "Date"
	case TypeTimestamp, TypeTimestampTZ:
		return "POSIXct"
	case TypeTime:
		return "hms"
	default:
		return ""
	}
}

type ColumnInfo struct {
	Name string
	Type ColumnType
}

// ColumnSchema is the ordered list of result columns of a prepared statement.
type ColumnSchema []ColumnInfo

func (s ColumnSchema) Names() []string {
	names := make([]string, len(s))
	for i, ci := range s {
		names[i] = ci.Name
	}
	return names
}

func (s ColumnSchema) Types() []ColumnType {
	types := make([]ColumnType, len(s))
	for i, ci := range s {
		types[i] = ci.Type
	}
	return types
}
