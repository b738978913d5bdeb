package eventbus

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the dynamic type carried by a Value.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindBool
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindAny:
		return "any"
	default:
		return "invalid"
	}
}

// Value is one broadcast argument.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	a    any
}

func Str(s string) Value       { return Value{kind: KindString, s: s} }
func Int(i int64) Value        { return Value{kind: KindInt, i: i} }
func Float(f float64) Value    { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value        { return Value{kind: KindBool, b: b} }
func Any(v any) Value          { return Value{kind: KindAny, a: v} }
func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsValid() bool  { return v.kind != 0 }
func (v Value) Interface() any { return v.value() }

// AsString returns the string payload; ok is false for other kinds.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) value() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindAny:
		return v.a
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindAny:
		return fmt.Sprint(v.a)
	default:
		return ""
	}
}

// Args is the ordered argument list delivered to handlers.
type Args []Value

func (a Args) Len() int { return len(a) }

// At returns the i-th value, or the zero Value when out of range.
func (a Args) At(i int) Value {
	if i < 0 || i >= len(a) {
		return Value{}
	}
	return a[i]
}

// String joins the rendered values with ";".
func (a Args) String() string {
	if len(a) == 0 {
		return ""
	}
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = v.String()
	}
	return strings.Join(parts, ";")
}

// Values converts plain Go values into Args, choosing the narrowest kind.
func Values(vs ...any) Args {
	out := make(Args, 0, len(vs))
	for _, v := range vs {
		switch x := v.(type) {
		case Value:
			out = append(out, x)
		case string:
			out = append(out, Str(x))
		case int:
			out = append(out, Int(int64(x)))
		case int32:
			out = append(out, Int(int64(x)))
		case int64:
			out = append(out, Int(x))
		case float32:
			out = append(out, Float(float64(x)))
		case float64:
			out = append(out, Float(x))
		case bool:
			out = append(out, Bool(x))
		default:
			out = append(out, Any(x))
		}
	}
	return out
}
