// Package search compiles a raw hyperparameter set into a lazy space of
// validated candidate configurations.
//
// Each multi-valued parameter expands into an Axis under one of the search
// strategies (grid, random, geometric, user_specified); the NN layer family
// expands through search/layergen; Compile crosses the independent axes
// with the layer tuples and yields candidates that already passed
// validation.
package search

import (
	"github.com/molml/hypersearch/params"
	"github.com/pkg/errors"
)

// Strategy is the rule turning a compact range or list specification into
// a concrete axis.
type Strategy int

const (
	// Grid expands "start,end,step" into the closed arithmetic sequence.
	Grid Strategy = iota
	// Random draws "start,end,count" values from a seeded generator.
	Random
	// Geometric expands "start,end,step" into a ratio-spaced sequence
	// with the same point count as the equivalent grid.
	Geometric
	// UserSpecified takes the explicit list verbatim.
	UserSpecified
)

// String returns the strategy name as used in the search_type parameter.
func (s Strategy) String() string {
	switch s {
	case Grid:
		return params.SearchGrid
	case Random:
		return params.SearchRandom
	case Geometric:
		return params.SearchGeometric
	case UserSpecified:
		return params.SearchUser
	}
	return "invalid"
}

// ParseStrategy converts a search_type value into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case params.SearchGrid:
		return Grid, nil
	case params.SearchRandom:
		return Random, nil
	case params.SearchGeometric:
		return Geometric, nil
	case params.SearchUser:
		return UserSpecified, nil
	}
	return 0, errors.Errorf("unknown search_type %q, want one of grid, random, geometric, user_specified", name)
}
