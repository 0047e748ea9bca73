package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Type is the semantic type tag of a column.
type Type int

const (
	Text Type = iota
	Numeric
	Datetime
	Boolean
	Percentage
	Currency
)

var typeNames = [...]string{
	Text:       "text",
	Numeric:    "numeric",
	Datetime:   "datetime",
	Boolean:    "boolean",
	Percentage: "percentage",
	Currency:   "currency",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("type(%d)", int(t))
	}
	return typeNames[t]
}

// IsNumeric reports whether cells of this type hold numbers.
func (t Type) IsNumeric() bool {
	return t == Numeric || t == Percentage || t == Currency
}

// ParseType resolves a type name such as "numeric" or "datetime".
func ParseType(s string) (Type, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "number", "float", "int", "integer":
		return Numeric, nil
	case "date", "time", "timestamp":
		return Datetime, nil
	case "bool":
		return Boolean, nil
	case "string", "str":
		return Text, nil
	}
	for i, n := range typeNames {
		if n == key {
			return Type(i), nil
		}
	}
	return Text, fmt.Errorf("unknown column type %q", s)
}

// MarshalText renders the type name for JSON and YAML output.
func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Kind identifies what a Value holds.
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindTime
	KindBool
	KindString
)

// Value is a single cell. The zero Value is Missing.
type Value struct {
	kind Kind
	num  float64
	t    time.Time
	b    bool
	s    string
}

// Missing is the absent-value marker shared by every column type.
var Missing = Value{}

// Number returns a numeric cell. NaN is stored as Missing.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Missing
	}
	return Value{kind: KindNumber, num: f}
}

// Time returns a datetime cell normalized to UTC.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t.UTC()} }

// Bool returns a boolean cell.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String returns a text cell.
func String(s string) Value { return Value{kind: KindString, s: s} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsMissing() bool { return v.kind == KindMissing }
func (v Value) Float() float64 { return v.num }
func (v Value) Time() time.Time { return v.t }
func (v Value) Bool() bool { return v.b }
func (v Value) Str() string { return v.s }

// Equal reports whether two cells hold the same value. Missing equals Missing.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindTime:
		return v.t.Equal(o.t)
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	}
	return true
}

// String renders the cell as delimited-text content. Missing renders empty.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.num)
	case KindTime:
		return FormatTime(v.t)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	}
	return ""
}

// key is a collision-free encoding used for row hashing.
func (v Value) key() string {
	switch v.kind {
	case KindNumber:
		if v.num == 0 {
			return "n0"
		}
		return "n" + strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindTime:
		return "t" + strconv.FormatInt(v.t.UnixNano(), 10)
	case KindBool:
		return "b" + strconv.FormatBool(v.b)
	case KindString:
		return "s" + v.s
	}
	return "m"
}

// FormatNumber prints f in plain decimal form, switching to exponent form only
// for very large or very small magnitudes.
func FormatNumber(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	a := math.Abs(f)
	if a != 0 && (a < 1e-4 || a >= 1e21) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatTime prints a date, or a date and time when the time of day is set.
func FormatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}
