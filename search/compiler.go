package search

import (
	"fmt"
	"iter"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/molml/hypersearch/params"
	"github.com/molml/hypersearch/search/layergen"
	"k8s.io/klog/v2"
)

// The NN layer family: interdependent parameters consumed together by the
// combination generator (or taken verbatim in their multi-architecture
// form), never expanded as independent axes.
var nnLayerFamily = map[string]bool{
	"layer_sizes":          true,
	"dropouts":             true,
	"weight_init_stddevs":  true,
	"bias_init_consts":     true,
	"layer_nums":           true,
	"node_nums":            true,
	"dropout_list":         true,
	"max_final_layer_size": true,
}

// EmptySearchSpaceError reports a search space with nothing to run: an
// axis expanded to zero values, or every candidate failed validation.
type EmptySearchSpaceError struct {
	Params []string
	Reason string
}

// Error implements the error interface.
func (e *EmptySearchSpaceError) Error() string {
	if len(e.Params) > 0 {
		return fmt.Sprintf("empty search space: %s (parameters: %s)",
			e.Reason, strings.Join(e.Params, ", "))
	}
	return "empty search space: " + e.Reason
}

// CompileOptions configures Compile.
type CompileOptions struct {
	// Registry of recognized parameters. Defaults to params.Defaults().
	Registry *params.Registry
	// Seed for the random search strategy. The generator is created here,
	// never from ambient entropy, so compiling the same inputs twice
	// yields identical spaces.
	Seed uint64
}

// Space is the compiled search space: fixed single-valued parameters, the
// independent multi-valued axes, and (for NN model types) the layer
// tuples. Candidates are produced lazily; the space itself is cheap to
// hold and restartable.
type Space struct {
	fixed  map[string]params.Value
	axes   []Axis
	tuples []layergen.Tuple
	nn     bool
}

// Compile expands every parameter of the raw input into its axis, builds
// the NN layer tuples when applicable, and returns the lazy space of
// validated candidates.
//
// Fatal conditions (ParseError, RangeError, axis-level emptiness) surface
// here; per-candidate validation failures only surface as skipped
// candidates during iteration.
func Compile(raw map[string]string, opts CompileOptions) (*Space, error) {
	reg := opts.Registry
	if reg == nil {
		reg = params.Defaults()
	}
	specs, err := reg.ParseAll(raw)
	if err != nil {
		return nil, err
	}

	strategyName := "grid"
	if spec, found := specs["search_type"]; found {
		if spec.Kind != params.Scalar {
			return nil, &RangeError{Param: "search_type", Reason: "must be a single value"}
		}
		strategyName = spec.Scalar().Str()
	}
	strategy, err := ParseStrategy(strategyName)
	if err != nil {
		return nil, err
	}

	space := &Space{fixed: make(map[string]params.Value)}
	modelType := ""
	if spec, found := specs["model_type"]; found && spec.Kind == params.Scalar {
		modelType = spec.Scalar().Str()
	}
	space.nn = strings.Contains(strings.ToUpper(modelType), "NN")

	if space.nn {
		space.tuples, err = buildLayerTuples(specs, raw)
		if err != nil {
			return nil, err
		}
		if len(space.tuples) == 0 {
			return nil, &EmptySearchSpaceError{Params: []string{"layer_nums", "node_nums"},
				Reason: "the NN layer family produced no architectures"}
		}
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	var emptyAxes []string

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := specs[name]
		if nnLayerFamily[name] {
			if !space.nn {
				// Present but inert for non-NN trials: the value rides
				// along without multiplying the space.
				if spec.Kind == params.Scalar {
					space.fixed[name] = spec.Scalar()
				} else {
					space.fixed[name] = params.StrValue(spec.Encode())
				}
			}
			continue
		}
		def, _ := reg.Get(name)
		if spec.IsMulti() && !familyRelevant(name, modelType) {
			// Multi-valued parameter of an irrelevant model family:
			// collapse to its first value instead of crossing it in.
			klog.V(1).Infof("parameter %q is irrelevant for model_type=%q, pinning to %v",
				name, modelType, spec.List()[0])
			space.fixed[name] = spec.List()[0]
			continue
		}
		axisStrategy := strategy
		if spec.IsMulti() && !def.Allows(strategy.String()) {
			// Parameters not searchable under the run's strategy (e.g. a
			// featurizer list during a grid search) fall back to their
			// verbatim list.
			axisStrategy = UserSpecified
		}
		axis, err := Expand(spec, axisStrategy, ExpandOptions{Rand: rng, LogScale: def.LogScale})
		if err != nil {
			return nil, err
		}
		if len(axis.Values) == 0 {
			emptyAxes = append(emptyAxes, name)
			continue
		}
		if len(axis.Values) == 1 {
			space.fixed[name] = axis.Values[0]
			continue
		}
		space.axes = append(space.axes, *axis)
	}
	if len(emptyAxes) > 0 {
		return nil, &EmptySearchSpaceError{Params: emptyAxes, Reason: "axes expanded to zero values"}
	}
	return space, nil
}

// familyRelevant reports whether a parameter's model family matters for
// the given model type. Parameters outside the rf_/xgb_ families are
// always relevant.
func familyRelevant(name, modelType string) bool {
	mt := strings.ToUpper(modelType)
	switch {
	case strings.HasPrefix(name, "rf_"):
		return strings.Contains(mt, "RF")
	case strings.HasPrefix(name, "xgb_"):
		return strings.Contains(mt, "XGB")
	}
	return true
}

// buildLayerTuples resolves the NN layer family. When the raw input pins
// layer_sizes explicitly (possibly as space-separated multi-architecture
// groups) those architectures are taken verbatim; otherwise the
// combination generator enumerates them from layer_nums/node_nums/
// dropout_list under max_final_layer_size.
func buildLayerTuples(specs map[string]*params.Spec, raw map[string]string) ([]layergen.Tuple, error) {
	if _, explicit := raw["layer_sizes"]; explicit || specs["layer_nums"] == nil {
		return explicitLayerTuples(specs, raw)
	}
	if specs["node_nums"] == nil {
		return nil, &RangeError{Param: "node_nums", Reason: "required when layer_nums is given"}
	}

	for _, name := range []string{"layer_nums", "node_nums", "dropout_list"} {
		if spec := specs[name]; spec != nil && spec.Kind == params.ListOfLists {
			return nil, &RangeError{Param: name, Reason: "must be a flat list, not groups"}
		}
	}
	layerNums := intList(specs["layer_nums"])
	nodeNums := intList(specs["node_nums"])
	cfg := layergen.New(layerNums, nodeNums)
	if spec := specs["dropout_list"]; spec != nil {
		cfg = cfg.Dropouts(floatList(spec))
	}
	if spec := specs["max_final_layer_size"]; spec != nil {
		if spec.Kind != params.Scalar {
			return nil, &RangeError{Param: "max_final_layer_size", Reason: "must be a single value"}
		}
		cfg = cfg.MaxFinalLayerSize(int(spec.Scalar().Int()))
	}
	return cfg.Done()
}

// explicitLayerTuples consumes layer_sizes groups as ready-made
// architectures, pairing each with the matching dropouts /
// weight_init_stddevs / bias_init_consts group. A single group of any of
// the companions broadcasts across all architectures; missing companions
// get the uniform defaults. Mismatched pairings are left to the validator.
func explicitLayerTuples(specs map[string]*params.Spec, raw map[string]string) ([]layergen.Tuple, error) {
	sizesSpec := specs["layer_sizes"]
	if sizesSpec == nil {
		return nil, &EmptySearchSpaceError{Params: []string{"layer_sizes"},
			Reason: "model_type includes NN but no layer topology is specified"}
	}
	// Companions pair up only when the caller actually supplied them;
	// registry defaults would not track the architecture depths.
	companion := func(name string) *params.Spec {
		if _, found := raw[name]; found {
			return specs[name]
		}
		return nil
	}
	dropouts := companion("dropouts")
	stddevs := companion("weight_init_stddevs")
	biases := companion("bias_init_consts")

	sizeGroups := sizesSpec.Groups()
	tuples := make([]layergen.Tuple, 0, len(sizeGroups))
	for i, group := range sizeGroups {
		depth := len(group)
		sizes := make([]int, depth)
		for j, v := range group {
			sizes[j] = int(v.Int())
		}
		tuples = append(tuples, layergen.Tuple{
			LayerSizes:        sizes,
			Dropouts:          companionGroup(dropouts, i, depth, 0.0),
			WeightInitStddevs: companionGroup(stddevs, i, depth, layergen.DefaultWeightInitStddev),
			BiasInitConsts:    companionGroup(biases, i, depth, layergen.DefaultBiasInitConst),
		})
	}
	return tuples, nil
}

func companionGroup(spec *params.Spec, i, depth int, fallback float64) []float64 {
	if spec == nil {
		out := make([]float64, depth)
		for j := range out {
			out[j] = fallback
		}
		return out
	}
	groups := spec.Groups()
	group := groups[0]
	if len(groups) > i {
		group = groups[i]
	}
	out := make([]float64, len(group))
	for j, v := range group {
		out[j] = v.Float()
	}
	return out
}

func intList(spec *params.Spec) []int {
	values := spec.List()
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v.Int())
	}
	return out
}

func floatList(spec *params.Spec) []float64 {
	values := spec.List()
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v.Float()
	}
	return out
}

// Size returns the number of combinations in the space before validation.
func (s *Space) Size() int {
	size := 1
	for _, axis := range s.axes {
		size *= len(axis.Values)
	}
	if s.nn {
		size *= len(s.tuples)
	}
	return size
}

// Candidates returns the lazy, restartable sequence of validated
// candidates. Iterating twice yields identical candidates in identical
// order. A candidate failing validation is skipped with a logged
// diagnostic; it never aborts the iteration.
func (s *Space) Candidates() iter.Seq[*Candidate] {
	return func(yield func(*Candidate) bool) {
		tupleCount := 1
		if s.nn {
			tupleCount = len(s.tuples)
		}
		indices := make([]int, len(s.axes))
		for tupleIdx := 0; tupleIdx < tupleCount; tupleIdx++ {
			for i := range indices {
				indices[i] = 0
			}
			for {
				candidate := s.assemble(tupleIdx, indices)
				if err := Validate(candidate); err != nil {
					klog.V(1).Infof("skipping invalid candidate: %v", err)
				} else if !yield(candidate) {
					return
				}
				// Odometer over the axes, last axis fastest.
				pos := len(indices) - 1
				for pos >= 0 {
					indices[pos]++
					if indices[pos] < len(s.axes[pos].Values) {
						break
					}
					indices[pos] = 0
					pos--
				}
				if pos < 0 {
					break
				}
			}
		}
	}
}

func (s *Space) assemble(tupleIdx int, indices []int) *Candidate {
	values := make(map[string]params.Value, len(s.fixed)+len(s.axes))
	for name, v := range s.fixed {
		values[name] = v
	}
	for i, axis := range s.axes {
		values[axis.Param] = axis.Values[indices[i]]
	}
	c := &Candidate{values: values}
	if s.nn {
		c.layers = &s.tuples[tupleIdx]
	}
	return c
}

// EnsureNonEmpty scans the space until the first valid candidate. It
// returns an EmptySearchSpaceError when validation rejects every
// combination -- the lazy counterpart of the fatal all-invalid condition.
func (s *Space) EnsureNonEmpty() error {
	for range s.Candidates() {
		return nil
	}
	return &EmptySearchSpaceError{Reason: "every candidate failed validation"}
}
