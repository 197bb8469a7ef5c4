package ollie

import (
	"fmt"
	"math"
	"reflect"

	"gopkg.in/guregu/null.v4"
)

// Kind is the storage representation of a column. The set is closed: these
// are the only value types the underlying store holds natively.
type Kind int

const (
	KindBlob Kind = iota
	KindDouble
	KindFloat
	KindInt
	KindInt64
	KindInt16
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindDouble:
		return "double"
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindInt64:
		return "int64"
	case KindInt16:
		return "int16"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// SQLType returns the column type used in schema definitions.
func (k Kind) SQLType() string {
	switch k {
	case KindBlob:
		return "BLOB"
	case KindDouble, KindFloat:
		return "REAL"
	case KindInt, KindInt64, KindInt16:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

type kindEntry struct {
	kind     Kind
	nullable bool
}

// kindTable maps a declared field type to its storage kind. Each kind is
// registered once with its primitive form, its pointer form and, where one
// exists, its guregu null form. The pointer and null forms are the nullable
// column declarations.
var kindTable = map[reflect.Type]kindEntry{
	reflect.TypeOf([]byte(nil)):     {KindBlob, true},
	reflect.TypeOf(float64(0)):      {KindDouble, false},
	reflect.TypeOf((*float64)(nil)): {KindDouble, true},
	reflect.TypeOf(null.Float{}):    {KindDouble, true},
	reflect.TypeOf(float32(0)):      {KindFloat, false},
	reflect.TypeOf((*float32)(nil)): {KindFloat, true},
	reflect.TypeOf(int(0)):          {KindInt, false},
	reflect.TypeOf((*int)(nil)):     {KindInt, true},
	reflect.TypeOf(int32(0)):        {KindInt, false},
	reflect.TypeOf((*int32)(nil)):   {KindInt, true},
	reflect.TypeOf(int64(0)):        {KindInt64, false},
	reflect.TypeOf((*int64)(nil)):   {KindInt64, true},
	reflect.TypeOf(null.Int{}):      {KindInt64, true},
	reflect.TypeOf(int16(0)):        {KindInt16, false},
	reflect.TypeOf((*int16)(nil)):   {KindInt16, true},
	reflect.TypeOf(""):              {KindText, false},
	reflect.TypeOf((*string)(nil)):  {KindText, true},
	reflect.TypeOf(null.String{}):   {KindText, true},
}

func kindOf(typ reflect.Type) (kindEntry, bool) {
	entry, ok := kindTable[typ]
	return entry, ok
}

// coerce converts a raw driver value into the canonical Go value for the
// kind. The sqlite driver hands back int64, float64, string and []byte only;
// narrower column kinds are converted here, never per-row by the caller.
func coerce(kind Kind, raw any) (any, error) {
	switch kind {
	case KindBlob:
		switch v := raw.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	case KindDouble:
		if v, ok := asFloat64(raw); ok {
			return v, nil
		}
	case KindFloat:
		if v, ok := asFloat64(raw); ok {
			return float32(v), nil
		}
	case KindInt:
		if v, ok := asInt64(raw); ok {
			if v < math.MinInt32 || v > math.MaxInt32 {
				return nil, fmt.Errorf("value %d overflows %s", v, kind)
			}

			return int32(v), nil
		}
	case KindInt64:
		if v, ok := asInt64(raw); ok {
			return v, nil
		}
	case KindInt16:
		if v, ok := asInt64(raw); ok {
			if v < math.MinInt16 || v > math.MaxInt16 {
				return nil, fmt.Errorf("value %d overflows %s", v, kind)
			}

			return int16(v), nil
		}
	case KindText:
		switch v := raw.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	}

	return nil, fmt.Errorf("cannot read %T as %s", raw, kind)
}

func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case float64:
		// a fractional value is not an integer column's value
		if v == math.Trunc(v) {
			return int64(v), true
		}
	}

	return 0, false
}

func asFloat64(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	}

	return 0, false
}
