// Package params defines the typed parameter model for the hyperparameter
// search compiler.
//
// Every pipeline parameter arrives as a raw string (from a JSON/YAML config
// file or a command-line override) and is resolved exactly once into a
// tagged, typed Spec: a scalar, a flat list, or a list-of-lists. Downstream
// packages never re-inspect raw strings; they consume the typed values.
//
// The set of recognized parameters, their value types, defaults and allowed
// search strategies live in a Registry -- see Defaults for the standard
// surface of the molecular-property modeling pipeline.
package params

import (
	"strconv"

	"github.com/gomlx/exceptions"
)

// ValueType enumerates the leaf types a parameter value can take.
type ValueType int

const (
	Int ValueType = iota
	Float
	Str
	Bool
)

// String returns the lower-case name of the value type.
func (vt ValueType) String() string {
	switch vt {
	case Int:
		return "int"
	case Float:
		return "float"
	case Str:
		return "str"
	case Bool:
		return "bool"
	}
	return "invalid"
}

// Kind tags the shape of a parsed parameter value.
type Kind int

const (
	// Scalar is a single value, e.g. "0.001".
	Scalar Kind = iota
	// FlatList is a comma-separated list, e.g. "100,200,300".
	FlatList
	// ListOfLists is a space-separated list of comma-separated groups,
	// e.g. "64,64 256,128,64". Used by the NN layer family parameters in
	// their multi-architecture hyperparameter form.
	ListOfLists
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case FlatList:
		return "list"
	case ListOfLists:
		return "list-of-lists"
	}
	return "invalid"
}

// Value is one typed leaf value. The zero Value is a Str empty string.
//
// Accessors panic if called for the wrong type: mixing up types is a bug in
// the caller, not an input error.
type Value struct {
	t ValueType
	i int64
	f float64
	s string
	b bool
}

// IntValue wraps an integer.
func IntValue(v int64) Value { return Value{t: Int, i: v} }

// FloatValue wraps a float.
func FloatValue(v float64) Value { return Value{t: Float, f: v} }

// StrValue wraps a string.
func StrValue(v string) Value { return Value{t: Str, s: v} }

// BoolValue wraps a bool.
func BoolValue(v bool) Value { return Value{t: Bool, b: v} }

// Type returns the value's type tag.
func (v Value) Type() ValueType { return v.t }

// Int returns the integer value. Panics if the value is not an Int.
func (v Value) Int() int64 {
	if v.t != Int {
		exceptions.Panicf("params.Value.Int() called on a %s value", v.t)
	}
	return v.i
}

// Float returns the float value. For convenience it also converts Int
// values. Panics otherwise.
func (v Value) Float() float64 {
	switch v.t {
	case Float:
		return v.f
	case Int:
		return float64(v.i)
	}
	exceptions.Panicf("params.Value.Float() called on a %s value", v.t)
	return 0
}

// Str returns the string value. Panics if the value is not a Str.
func (v Value) Str() string {
	if v.t != Str {
		exceptions.Panicf("params.Value.Str() called on a %s value", v.t)
	}
	return v.s
}

// Bool returns the bool value. Panics if the value is not a Bool.
func (v Value) Bool() bool {
	if v.t != Bool {
		exceptions.Panicf("params.Value.Bool() called on a %s value", v.t)
	}
	return v.b
}

// Equal reports whether two values have the same type and contents.
func (v Value) Equal(o Value) bool { return v == o }

// String returns the canonical raw encoding of the value: the form that
// parses back to an identical Value.
func (v Value) String() string {
	switch v.t {
	case Int:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Bool:
		if v.b {
			return "True"
		}
		return "False"
	}
	return v.s
}

// MarshalJSON encodes the value as its native JSON type (number, bool or
// string), so candidate configurations serialize to plain JSON objects.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.t {
	case Int:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case Float:
		return []byte(strconv.FormatFloat(v.f, 'g', -1, 64)), nil
	case Bool:
		if v.b {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	}
	return []byte(strconv.Quote(v.s)), nil
}
