// Defines the tagged scalar stored in every dataset cell.

package tabular

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind is the runtime tag of a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindText
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a single cell. The zero Value is null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Null returns the null value.
func Null() Value { return Value{} }

// Int returns an integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a floating point value. NaN is stored as null.
func Float(v float64) Value {
	if math.IsNaN(v) {
		return Value{}
	}
	return Value{kind: KindFloat, f: v}
}

// Text returns a string value.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Bool returns a boolean value.
func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, i: 1}
	}
	return Value{kind: KindBool}
}

// Kind returns the value's tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 returns the integer payload; only meaningful for KindInt.
func (v Value) Int64() int64 { return v.i }

// Float64 returns the float payload; only meaningful for KindFloat.
func (v Value) Float64() float64 { return v.f }

// Str returns the string payload; only meaningful for KindText.
func (v Value) Str() string { return v.s }

// Truth returns the boolean payload; only meaningful for KindBool.
func (v Value) Truth() bool { return v.i != 0 }

// Number coerces v to a float64.
//
// Integers, floats and booleans (as 1 or 0) always convert. Text converts when
// it parses as a number. Null never converts.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindBool:
		return float64(v.i), true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String renders v the way a text comparison sees it.
//
// Floats always carry a decimal point or an exponent so that 30 and 30.0 stay
// distinguishable, booleans are capitalized and null renders as "nan".
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindText:
		return v.s
	case KindBool:
		if v.i != 0 {
			return "True"
		}
		return "False"
	default:
		return "nan"
	}
}

// Any returns the Go representation used for JSON encoding and SQL binding.
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindBool:
		return v.i != 0
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindFloat && math.IsInf(v.f, 0) {
		// JSON has no infinity.
		return []byte("null"), nil
	}
	return json.Marshal(v.Any())
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// compareValues orders two cells for sorting. Nulls are handled by the caller.
func compareValues(a, b Value) int {
	an, aok := a.sortNumber()
	bn, bok := b.sortNumber()
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	}
	if a.kind == KindText && b.kind == KindText {
		return strings.Compare(a.s, b.s)
	}
	return strings.Compare(a.String(), b.String())
}

// sortNumber differs from Number in that text never sorts numerically.
func (v Value) sortNumber() (float64, bool) {
	switch v.kind {
	case KindInt, KindBool:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}
