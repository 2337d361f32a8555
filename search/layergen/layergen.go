// Package layergen enumerates valid neural-network layer topologies for a
// hyperparameter search.
//
// For every candidate depth in layerNums and every order-sensitive,
// with-replacement combination of widths from nodeNums it builds a layer
// size sequence, caps the final layer at maxFinalLayerSize (with a
// clamp-down fallback so a non-empty nodeNums never yields an empty set),
// and crosses the surviving sequences with the dropout candidates.
//
// It follows the usual configuration pattern: New(...), optionally chain
// setters, then Done() to generate:
//
//	tuples, err := layergen.New([]int{1, 2}, []int{64, 256}).
//		Dropouts([]float64{0.0, 0.4}).
//		MaxFinalLayerSize(32).
//		Done()
package layergen

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Defaults for the per-layer initialization vectors, applied uniformly
// across all layers unless overridden.
const (
	DefaultWeightInitStddev = 0.02
	DefaultBiasInitConst    = 1.0
	DefaultMaxFinalLayer    = 32
)

// Tuple is one fully resolved layer topology. All four slices have the
// same length, one entry per layer.
type Tuple struct {
	LayerSizes        []int
	Dropouts          []float64
	WeightInitStddevs []float64
	BiasInitConsts    []float64
}

// Config collects the generation inputs. Create it with New.
type Config struct {
	layerNums []int
	nodeNums  []int
	dropouts  []float64
	maxFinal  int

	weightInitStddev float64
	biasInitConst    float64

	err error
}

// New starts a generator configuration from the candidate network depths
// (layerNums) and candidate layer widths (nodeNums).
func New(layerNums, nodeNums []int) *Config {
	c := &Config{
		layerNums:        slices.Clone(layerNums),
		nodeNums:         slices.Clone(nodeNums),
		dropouts:         []float64{0.0},
		maxFinal:         DefaultMaxFinalLayer,
		weightInitStddev: DefaultWeightInitStddev,
		biasInitConst:    DefaultBiasInitConst,
	}
	if len(layerNums) == 0 {
		c.err = errors.Errorf("layergen: layerNums must not be empty")
	}
	if len(nodeNums) == 0 {
		c.err = errors.Errorf("layergen: nodeNums must not be empty")
	}
	for _, l := range layerNums {
		if l <= 0 {
			c.err = errors.Errorf("layergen: invalid layer count %d, must be positive", l)
		}
	}
	for _, n := range nodeNums {
		if n <= 0 {
			c.err = errors.Errorf("layergen: invalid node count %d, must be positive", n)
		}
	}
	return c
}

// Dropouts sets the dropout candidates. Each value is broadcast uniformly
// across all layers of an architecture -- one dropout per generated
// topology, not per layer. (A per-layer variant would take a list per
// entry; the broadcast policy is the current, simpler one.)
func (c *Config) Dropouts(list []float64) *Config {
	if len(list) == 0 {
		c.err = errors.Errorf("layergen: dropout list must not be empty")
		return c
	}
	c.dropouts = slices.Clone(list)
	return c
}

// MaxFinalLayerSize caps the width of the last layer. Default is 32.
func (c *Config) MaxFinalLayerSize(n int) *Config {
	if n <= 0 {
		c.err = errors.Errorf("layergen: max final layer size must be positive, got %d", n)
		return c
	}
	c.maxFinal = n
	return c
}

// WeightInitStddev overrides the uniform weight initialization stddev.
func (c *Config) WeightInitStddev(v float64) *Config {
	c.weightInitStddev = v
	return c
}

// BiasInitConst overrides the uniform bias initialization constant.
func (c *Config) BiasInitConst(v float64) *Config {
	c.biasInitConst = v
	return c
}

// Done generates the tuples. Enumeration order is deterministic: layer
// counts ascending, node combinations in lexicographic order over the
// nodeNums input order, dropouts in input order.
func (c *Config) Done() ([]Tuple, error) {
	if c.err != nil {
		return nil, c.err
	}

	// When every candidate width exceeds the cap, discarding would empty
	// the space; instead the final layer is clamped down to the cap.
	clampDown := slices.Min(c.nodeNums) > c.maxFinal

	layerNums := slices.Clone(c.layerNums)
	slices.Sort(layerNums)
	layerNums = slices.Compact(layerNums)

	var sized [][]int
	seen := make(map[string]bool)
	for _, depth := range layerNums {
		for combo := range combinations(c.nodeNums, depth) {
			last := combo[depth-1]
			if last > c.maxFinal {
				if !clampDown {
					continue
				}
				combo[depth-1] = min(slices.Min(c.nodeNums), c.maxFinal)
			}
			// Clamping can collapse distinct combinations; keep the first.
			key := comboKey(combo)
			if seen[key] {
				continue
			}
			seen[key] = true
			sized = append(sized, slices.Clone(combo))
		}
	}

	tuples := make([]Tuple, 0, len(sized)*len(c.dropouts))
	for _, sizes := range sized {
		depth := len(sizes)
		for _, dropout := range c.dropouts {
			tuples = append(tuples, Tuple{
				LayerSizes:        slices.Clone(sizes),
				Dropouts:          repeat(dropout, depth),
				WeightInitStddevs: repeat(c.weightInitStddev, depth),
				BiasInitConsts:    repeat(c.biasInitConst, depth),
			})
		}
	}
	return tuples, nil
}

// combinations yields every length-depth sequence drawn with replacement
// from values, in lexicographic order over the input order. The yielded
// slice is reused between iterations; callers must clone to retain it.
func combinations(values []int, depth int) func(yield func([]int) bool) {
	return func(yield func([]int) bool) {
		indices := make([]int, depth)
		combo := make([]int, depth)
		for {
			for i, idx := range indices {
				combo[i] = values[idx]
			}
			if !yield(combo) {
				return
			}
			// Odometer increment, last position fastest.
			pos := depth - 1
			for pos >= 0 {
				indices[pos]++
				if indices[pos] < len(values) {
					break
				}
				indices[pos] = 0
				pos--
			}
			if pos < 0 {
				return
			}
		}
	}
}

func comboKey(sizes []int) string {
	parts := make([]string, len(sizes))
	for i, s := range sizes {
		parts[i] = fmt.Sprintf("%d", s)
	}
	return strings.Join(parts, ",")
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
