// Package value defines the closed set of data shapes a remote call or
// query can produce, together with type-tag classification and the typed
// console renderer.
package value

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Tag identifies the variant of a Value for display purposes.
type Tag string

const (
	TagInt      Tag = "int"
	TagLong     Tag = "long"
	TagFloat    Tag = "float"
	TagBool     Tag = "boolean"
	TagString   Tag = "string"
	TagDecimal  Tag = "decimal"
	TagDate     Tag = "date"
	TagTime     Tag = "time"
	TagDateTime Tag = "datetime"
	TagArray    Tag = "array"
	TagStruct   Tag = "struct"

	// TagNone is returned for null values. An empty tag suppresses the
	// "TYPE name =" prefix when printing rather than printing an empty
	// type name.
	TagNone Tag = ""
)

// Value is the closed union of result shapes. Values are created
// transiently per call result and discarded after printing.
type Value interface {
	value()
}

// Int is a 32-bit wire integer (XML-RPC i4).
type Int int32

// Long is a 64-bit wire integer.
type Long int64

// Float is a double-precision float.
type Float float64

// Bool is a boolean.
type Bool bool

// String is a text scalar.
type String string

// Decimal is an arbitrary-precision decimal scalar.
type Decimal decimal.Decimal

// Date is a calendar date with no time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Time is a time-of-day with no date component.
type Time struct {
	Hour   int
	Minute int
	Second int
}

// DateTime is a point in time with an explicit timezone offset.
// Zone is the offset from UTC in whole hours; the printed numeric
// offset is Zone multiplied by 100.
type DateTime struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
	Zone   int
}

// Array is an ordered sequence of values.
type Array []Value

// Member is a single key/value pair of a Struct.
type Member struct {
	Key   string
	Value Value
}

// Struct is an ordered mapping of text keys to values. Insertion order
// is preserved; key sorting is a display option, not a storage property.
type Struct []Member

// Nil is the null/absent value.
type Nil struct{}

func (Int) value()      {}
func (Long) value()     {}
func (Float) value()    {}
func (Bool) value()     {}
func (String) value()   {}
func (Decimal) value()  {}
func (Date) value()     {}
func (Time) value()     {}
func (DateTime) value() {}
func (Array) value()    {}
func (Struct) value()   {}
func (Nil) value()      {}

// Get returns the value stored under key, or nil and false.
func (s Struct) Get(key string) (Value, bool) {
	for _, m := range s {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Native returns the DateTime as a time.Time in its own fixed zone.
func (d DateTime) Native() time.Time {
	loc := time.FixedZone("", d.Zone*3600)
	return time.Date(d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second, 0, loc)
}

// Classify returns the type tag matching v's variant, or TagNone for
// null. It never fails; payloads outside the closed union are handled
// by the printer's unknown-type diagnostic instead.
func Classify(v Value) Tag {
	switch v.(type) {
	case Int:
		return TagInt
	case Long:
		return TagLong
	case Float:
		return TagFloat
	case Bool:
		return TagBool
	case String:
		return TagString
	case Decimal:
		return TagDecimal
	case Date:
		return TagDate
	case Time:
		return TagTime
	case DateTime:
		return TagDateTime
	case Array:
		return TagArray
	case Struct:
		return TagStruct
	default:
		return TagNone
	}
}

// FromTime converts a time.Time into a DateTime, truncating sub-second
// precision and reducing the zone offset to whole hours.
func FromTime(t time.Time) DateTime {
	_, offset := t.Zone()
	return DateTime{
		Year:   t.Year(),
		Month:  t.Month(),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
		Zone:   offset / 3600,
	}
}

// FromAny converts a dynamically-typed transport payload into a Value.
// Transport maps carry no ordering, so struct members are keyed in
// sorted order for deterministic output.
func FromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Nil{}
	case Value:
		return x
	case bool:
		return Bool(x)
	case int, int8, int16, int32, uint8, uint16:
		return Int(cast.ToInt32(x))
	case int64:
		if x >= -1<<31 && x < 1<<31 {
			return Int(int32(x))
		}
		return Long(x)
	case uint, uint32, uint64:
		n := cast.ToInt64(x)
		if n >= -1<<31 && n < 1<<31 {
			return Int(int32(n))
		}
		return Long(n)
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case string:
		return String(x)
	case []byte:
		return String(string(x))
	case decimal.Decimal:
		return Decimal(x)
	case time.Time:
		return FromTime(x)
	case []any:
		arr := make(Array, len(x))
		for i, el := range x {
			arr[i] = FromAny(el)
		}
		return arr
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		st := make(Struct, 0, len(keys))
		for _, k := range keys {
			st = append(st, Member{Key: k, Value: FromAny(x[k])})
		}
		return st
	default:
		return String(cast.ToString(raw))
	}
}
