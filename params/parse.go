package params

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// ParseError reports a malformed raw parameter value. It aborts the whole
// compilation: downstream expansion cannot proceed without a valid spec.
type ParseError struct {
	Param  string
	Raw    string
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parameter %q: cannot parse %q: %s", e.Param, e.Raw, e.Reason)
}

// Spec is the parsed, typed representation of one raw parameter value.
// It is immutable after Parse, and Encode round-trips back to a
// whitespace-normalized form of the original raw string.
type Spec struct {
	Name string
	Raw  string
	Kind Kind
	Type ValueType

	scalar Value
	list   []Value
	groups [][]Value
}

// Boolean tokens accepted by Parse. Anything else is a ParseError.
var boolTokens = map[string]bool{
	"TRUE": true, "True": true, "true": true,
	"FALSE": false, "False": false, "false": false,
}

func parseLeaf(name, raw, token string, vt ValueType) (Value, error) {
	switch vt {
	case Int:
		// "_" works as a digit separator, like in Go literals.
		cleaned := strings.ReplaceAll(token, "_", "")
		i, err := strconv.ParseInt(cleaned, 10, 64)
		if err != nil {
			return Value{}, &ParseError{Param: name, Raw: raw,
				Reason: fmt.Sprintf("%q is not an integer", token)}
		}
		return IntValue(i), nil
	case Float:
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return Value{}, &ParseError{Param: name, Raw: raw,
				Reason: fmt.Sprintf("%q is not a float", token)}
		}
		return FloatValue(f), nil
	case Bool:
		b, ok := boolTokens[token]
		if !ok {
			return Value{}, &ParseError{Param: name, Raw: raw,
				Reason: fmt.Sprintf("%q is not a boolean (use one of TRUE/True/true/FALSE/False/false)", token)}
		}
		return BoolValue(b), nil
	case Str:
		return StrValue(token), nil
	}
	return Value{}, errors.Errorf("parameter %q: invalid value type %d", name, vt)
}

// Parse resolves a raw string value for one named parameter into a typed
// Spec. The grammar is:
//
//   - a single token is a Scalar;
//   - comma-separated tokens are a FlatList;
//   - space-separated groups of comma-separated tokens are a ListOfLists
//     (one group per candidate, used by the NN layer family).
//
// Parse is pure: no side effects, and the same inputs always produce the
// same Spec.
func Parse(name, raw string, vt ValueType) (*Spec, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ParseError{Param: name, Raw: raw, Reason: "empty value"}
	}
	spec := &Spec{Name: name, Raw: trimmed, Type: vt}

	fields := strings.Fields(trimmed)
	if len(fields) > 1 && strings.Contains(trimmed, ",") {
		// Space is the outer separator, comma the inner one.
		spec.Kind = ListOfLists
		spec.groups = make([][]Value, 0, len(fields))
		for _, group := range fields {
			var inner []Value
			for _, token := range strings.Split(group, ",") {
				token = strings.TrimSpace(token)
				if token == "" {
					return nil, &ParseError{Param: name, Raw: raw,
						Reason: fmt.Sprintf("empty element in group %q", group)}
				}
				v, err := parseLeaf(name, raw, token, vt)
				if err != nil {
					return nil, err
				}
				inner = append(inner, v)
			}
			spec.groups = append(spec.groups, inner)
		}
		return spec, nil
	}

	var tokens []string
	if strings.Contains(trimmed, ",") {
		for _, token := range strings.Split(trimmed, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				return nil, &ParseError{Param: name, Raw: raw, Reason: "empty list element"}
			}
			tokens = append(tokens, token)
		}
	} else {
		tokens = fields
	}

	if len(tokens) == 1 {
		v, err := parseLeaf(name, raw, tokens[0], vt)
		if err != nil {
			return nil, err
		}
		spec.Kind = Scalar
		spec.scalar = v
		return spec, nil
	}

	spec.Kind = FlatList
	spec.list = make([]Value, 0, len(tokens))
	for _, token := range tokens {
		v, err := parseLeaf(name, raw, token, vt)
		if err != nil {
			return nil, err
		}
		spec.list = append(spec.list, v)
	}
	return spec, nil
}

// Scalar returns the single value of a Scalar spec. Panics for other kinds.
func (s *Spec) Scalar() Value {
	if s.Kind != Scalar {
		exceptions.Panicf("parameter %q: Scalar() called on a %s spec", s.Name, s.Kind)
	}
	return s.scalar
}

// List returns the values of the spec as a flat list. A Scalar yields a
// one-element list. Panics for a ListOfLists.
func (s *Spec) List() []Value {
	switch s.Kind {
	case Scalar:
		return []Value{s.scalar}
	case FlatList:
		return s.list
	}
	exceptions.Panicf("parameter %q: List() called on a %s spec", s.Name, s.Kind)
	return nil
}

// Groups returns the value groups of the spec. A Scalar or FlatList yields
// a single group, so callers consuming the multi-architecture form can
// treat every shape uniformly.
func (s *Spec) Groups() [][]Value {
	switch s.Kind {
	case Scalar:
		return [][]Value{{s.scalar}}
	case FlatList:
		return [][]Value{s.list}
	}
	return s.groups
}

// IsMulti reports whether the spec carries more than one value.
func (s *Spec) IsMulti() bool {
	switch s.Kind {
	case FlatList:
		return len(s.list) > 1
	case ListOfLists:
		return true
	}
	return false
}

// Encode serializes the spec back to its canonical raw form: commas join
// values, spaces join groups. For any spec produced by Parse,
// Parse(name, spec.Encode(), type) yields an equal spec.
func (s *Spec) Encode() string {
	switch s.Kind {
	case Scalar:
		return s.scalar.String()
	case FlatList:
		return encodeList(s.list)
	}
	parts := make([]string, 0, len(s.groups))
	for _, group := range s.groups {
		parts = append(parts, encodeList(group))
	}
	return strings.Join(parts, " ")
}

func encodeList(values []Value) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, ",")
}
