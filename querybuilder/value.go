package querybuilder

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind enumerates the operand kinds a Value can hold.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
)

// String returns the lower case name of the Kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Number is the set of Go numeric types accepted by Num and Numbers.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Value is a predicate operand: a string, a number, a boolean or an ordered list of Values.
//
// The zero Value is invalid; build Values with Str, Int, Float, Num, Bool, List, Strings, Numbers or ValueOf.
// Numbers remember whether they were given as integer or floating point, so rendering keeps the numeric kind.
type Value struct {
	kind    Kind
	str     string
	integer int64
	float   float64
	isFloat bool
	boolean bool
	items   []Value
}

// Str builds a string Value.
func Str(s string) Value {
	return Value{kind: KindString, str: s}
}

// Int builds an integer Value.
func Int(i int64) Value {
	return Value{kind: KindNumber, integer: i}
}

// Float builds a floating point Value.
func Float(f float64) Value {
	return Value{kind: KindNumber, float: f, isFloat: true}
}

// Bool builds a boolean Value.
func Bool(b bool) Value {
	return Value{kind: KindBool, boolean: b}
}

// Num builds a number Value from any Go numeric type.
// Integer types produce an integer Value, float types a floating point Value.
func Num[T Number](n T) Value {
	// one/2 truncates to zero for every integer type
	var one T = 1
	if one/2 != 0 {
		return Float(float64(n))
	}

	return Int(int64(n))
}

// List builds a list Value, preserving the order of the given items.
func List(items ...Value) Value {
	list := make([]Value, len(items))
	copy(list, items)

	return Value{kind: KindList, items: list}
}

// Strings builds a list Value of string items.
func Strings(items ...string) Value {
	list := make([]Value, 0, len(items))
	for _, item := range items {
		list = append(list, Str(item))
	}

	return Value{kind: KindList, items: list}
}

// Numbers builds a list Value of number items.
func Numbers[T Number](items ...T) Value {
	list := make([]Value, 0, len(items))
	for _, item := range items {
		list = append(list, Num(item))
	}

	return Value{kind: KindList, items: list}
}

// ValueOf converts a dynamically typed Go value, e.g. decoded from YAML or JSON, into a Value.
//
// Supported: Value, string, bool, all int/uint/float kinds, json.Number, []any, []string, []Value and
// slices of int, int64 and float64. Everything else returns ErrUnsupportedValue.
func ValueOf(v any) (Value, error) {
	switch typed := v.(type) {
	case Value:
		if typed.kind == KindInvalid {
			return Value{}, errors.Join(ErrUnsupportedValue, errors.New("invalid zero Value"))
		}
		return typed, nil
	case string:
		return Str(typed), nil
	case bool:
		return Bool(typed), nil
	case int:
		return Num(typed), nil
	case int8:
		return Num(typed), nil
	case int16:
		return Num(typed), nil
	case int32:
		return Num(typed), nil
	case int64:
		return Num(typed), nil
	case uint:
		return Num(typed), nil
	case uint8:
		return Num(typed), nil
	case uint16:
		return Num(typed), nil
	case uint32:
		return Num(typed), nil
	case uint64:
		return Num(typed), nil
	case float32:
		return Num(typed), nil
	case float64:
		return Num(typed), nil
	case json.Number:
		return numberFromJSON(typed)
	case []Value:
		return List(typed...), nil
	case []string:
		return Strings(typed...), nil
	case []int:
		return Numbers(typed...), nil
	case []int64:
		return Numbers(typed...), nil
	case []float64:
		return Numbers(typed...), nil
	case []any:
		items := make([]Value, 0, len(typed))
		for i, item := range typed {
			converted, err := ValueOf(item)
			if err != nil {
				return Value{}, fmt.Errorf("list item %d: %w", i, err)
			}
			items = append(items, converted)
		}
		return List(items...), nil
	default:
		return Value{}, errors.Join(ErrUnsupportedValue, fmt.Errorf("got %T", v))
	}
}

func numberFromJSON(n json.Number) (Value, error) {
	if !strings.ContainsAny(n.String(), ".eE") {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return Int(i), nil
		}
	}

	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return Value{}, errors.Join(ErrUnsupportedValue, err)
	}

	return Float(f), nil
}

// Kind returns the kind of the Value.
func (v Value) Kind() Kind {
	return v.kind
}

// IsValid reports whether the Value was built by one of the constructors.
func (v Value) IsValid() bool {
	return v.kind != KindInvalid
}

// IsInteger reports whether the Value is a number given as an integer.
func (v Value) IsInteger() bool {
	return v.kind == KindNumber && !v.isFloat
}

// AsString returns the string and true for string Values.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsInt returns the integer and true for integer number Values.
func (v Value) AsInt() (int64, bool) {
	return v.integer, v.IsInteger()
}

// AsFloat returns the number as float64 and true for any number Value.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}

	if v.isFloat {
		return v.float, true
	}

	return float64(v.integer), true
}

// AsBool returns the boolean and true for bool Values.
func (v Value) AsBool() (bool, bool) {
	return v.boolean, v.kind == KindBool
}

// Items returns a copy of the list items, or nil for non-list Values.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}

	items := make([]Value, len(v.items))
	copy(items, v.items)

	return items
}

// Native returns the Document representation of the Value:
// string, int64, float64, bool or []any.
func (v Value) Native() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if v.isFloat {
			return v.float
		}
		return v.integer
	case KindBool:
		return v.boolean
	case KindList:
		items := make([]any, 0, len(v.items))
		for _, item := range v.items {
			items = append(items, item.Native())
		}
		return items
	default:
		return nil
	}
}

// String renders the Value for logs and error messages.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindNumber:
		if v.isFloat {
			return strconv.FormatFloat(v.float, 'g', -1, 64)
		}
		return strconv.FormatInt(v.integer, 10)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	case KindList:
		parts := make([]string, 0, len(v.items))
		for _, item := range v.items {
			parts = append(parts, item.String())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "<invalid>"
	}
}
