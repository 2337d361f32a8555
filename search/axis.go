package search

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/molml/hypersearch/params"
	"k8s.io/klog/v2"
)

// Axis is the ordered, discrete set of values one parameter takes across
// the search. Order is deterministic given the same spec, strategy and
// seed.
type Axis struct {
	Param  string
	Values []params.Value
}

// RangeError reports invalid grid/geometric/random bounds. It is fatal for
// the compilation, like a ParseError.
type RangeError struct {
	Param  string
	Reason string
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	return fmt.Sprintf("parameter %q: invalid range: %s", e.Param, e.Reason)
}

// ExpandOptions carries the cross-axis expansion inputs.
type ExpandOptions struct {
	// Rand is the seeded generator used by the Random strategy. Required
	// for Random; never ambient entropy, so runs are reproducible.
	Rand *rand.Rand
	// LogScale makes Random sample log-uniformly, conventional for
	// learning-rate-like parameters.
	LogScale bool
}

// Expand produces the axis for one parsed parameter spec under the given
// strategy.
//
// A single-valued spec always produces a one-element axis, whatever the
// strategy: a parameter given one concrete value is not searched. String
// and boolean specs are never range-expanded; their lists are taken
// verbatim.
func Expand(spec *params.Spec, strategy Strategy, opts ExpandOptions) (*Axis, error) {
	if spec.Kind == params.Scalar {
		return &Axis{Param: spec.Name, Values: spec.List()}, nil
	}
	if spec.Kind == params.ListOfLists {
		return nil, &RangeError{Param: spec.Name,
			Reason: "list-of-lists values belong to the NN layer family, not to an independent axis"}
	}
	numeric := spec.Type == params.Int || spec.Type == params.Float
	if strategy == UserSpecified || !numeric {
		return &Axis{Param: spec.Name, Values: spec.List()}, nil
	}

	switch strategy {
	case Grid:
		return expandGrid(spec)
	case Geometric:
		return expandGeometric(spec)
	case Random:
		return expandRandom(spec, opts)
	}
	return nil, &RangeError{Param: spec.Name, Reason: fmt.Sprintf("unsupported strategy %s", strategy)}
}

func rangeTriple(spec *params.Spec) (start, end, third float64, err error) {
	list := spec.List()
	if len(list) != 3 {
		return 0, 0, 0, &RangeError{Param: spec.Name,
			Reason: fmt.Sprintf("want exactly 3 values (start,end,step), got %d", len(list))}
	}
	return list[0].Float(), list[1].Float(), list[2].Float(), nil
}

func checkBounds(spec *params.Spec, start, end, step float64) error {
	if step <= 0 {
		return &RangeError{Param: spec.Name, Reason: fmt.Sprintf("step %v must be > 0", step)}
	}
	if start > end {
		return &RangeError{Param: spec.Name, Reason: fmt.Sprintf("start %v > end %v", start, end)}
	}
	return nil
}

// gridCount is the number of points of the closed arithmetic sequence
// start, start+step, ..., <= end. The relative tolerance keeps float
// rounding from dropping an endpoint that the exact arithmetic includes.
func gridCount(start, end, step float64) int {
	return int(math.Floor((end-start)/step*(1+1e-9)+1e-9)) + 1
}

func expandGrid(spec *params.Spec) (*Axis, error) {
	start, end, step, err := rangeTriple(spec)
	if err != nil {
		return nil, err
	}
	if err := checkBounds(spec, start, end, step); err != nil {
		return nil, err
	}
	n := gridCount(start, end, step)
	values := make([]params.Value, 0, n)
	for i := 0; i < n; i++ {
		v := start + float64(i)*step
		values = append(values, numericValue(spec.Type, v))
	}
	return &Axis{Param: spec.Name, Values: values}, nil
}

func expandGeometric(spec *params.Spec) (*Axis, error) {
	start, end, step, err := rangeTriple(spec)
	if err != nil {
		return nil, err
	}
	if err := checkBounds(spec, start, end, step); err != nil {
		return nil, err
	}
	if start <= 0 {
		return nil, &RangeError{Param: spec.Name,
			Reason: fmt.Sprintf("geometric expansion requires start > 0, got %v", start)}
	}
	n := gridCount(start, end, step)
	if n == 1 || start == end {
		return &Axis{Param: spec.Name, Values: []params.Value{numericValue(spec.Type, start)}}, nil
	}
	ratio := math.Pow(end/start, 1.0/float64(n-1))
	values := make([]params.Value, 0, n)
	var prev params.Value
	for i := 0; i < n; i++ {
		point := start * math.Pow(ratio, float64(i))
		v := numericValue(spec.Type, point)
		// Integer rounding can collapse adjacent points; drop the later
		// one and record a note, never an error.
		if len(values) > 0 && v.Equal(prev) {
			klog.Warningf("parameter %q: geometric point %v rounds onto %v, dropping it",
				spec.Name, point, prev)
			continue
		}
		values = append(values, v)
		prev = v
	}
	return &Axis{Param: spec.Name, Values: values}, nil
}

func expandRandom(spec *params.Spec, opts ExpandOptions) (*Axis, error) {
	start, end, countF, err := rangeTriple(spec)
	if err != nil {
		return nil, err
	}
	count := int(countF)
	if count <= 0 {
		return nil, &RangeError{Param: spec.Name,
			Reason: fmt.Sprintf("sample count %v must be a positive integer", countF)}
	}
	if start > end {
		return nil, &RangeError{Param: spec.Name, Reason: fmt.Sprintf("start %v > end %v", start, end)}
	}
	if opts.Rand == nil {
		return nil, &RangeError{Param: spec.Name,
			Reason: "random expansion requires an explicit seeded generator"}
	}
	if opts.LogScale && start <= 0 {
		return nil, &RangeError{Param: spec.Name,
			Reason: fmt.Sprintf("log-uniform sampling requires start > 0, got %v", start)}
	}
	values := make([]params.Value, 0, count)
	for i := 0; i < count; i++ {
		var v float64
		switch {
		case spec.Type == params.Int:
			lo, hi := int64(math.Ceil(start)), int64(math.Floor(end))
			if lo > hi {
				return nil, &RangeError{Param: spec.Name,
					Reason: fmt.Sprintf("no integers in [%v,%v]", start, end)}
			}
			v = float64(lo + opts.Rand.Int64N(hi-lo+1))
		case opts.LogScale:
			u := opts.Rand.Float64()
			v = math.Exp(math.Log(start) + u*(math.Log(end)-math.Log(start)))
		default:
			v = start + opts.Rand.Float64()*(end-start)
		}
		values = append(values, numericValue(spec.Type, v))
	}
	return &Axis{Param: spec.Name, Values: values}, nil
}

// numericValue converts a float point into the axis value type, rounding
// (not truncating) integers so adjacent points stay distinct.
func numericValue(vt params.ValueType, v float64) params.Value {
	if vt == params.Int {
		return params.IntValue(int64(math.Round(v)))
	}
	return params.FloatValue(v)
}
