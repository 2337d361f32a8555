package search

import (
	"fmt"
	"strings"

	"github.com/molml/hypersearch/params"
)

// Violation names one validation rule a candidate broke.
type Violation struct {
	Rule   string
	Detail string
}

// ValidationError lists every rule a candidate violated. All rules are
// evaluated independently (no short-circuit) so the caller sees the full
// picture at once. It is recoverable: the compiler skips the candidate and
// continues.
type ValidationError struct {
	Violations []Violation
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s (%s)", v.Rule, v.Detail)
	}
	return "invalid candidate: " + strings.Join(parts, "; ")
}

var (
	predictionTypes = []string{"regression", "classification"}
	splitters       = []string{
		"random", "scaffold", "butina", "ave_min", "temporal",
		"fingerprint", "index", "stratified",
	}
	searchTypes = []string{
		params.SearchGrid, params.SearchRandom, params.SearchGeometric, params.SearchUser,
	}
)

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// Validate cross-checks a candidate for structural consistency. It returns
// nil or a ValidationError naming every violated rule; the candidate is
// never mutated. Parameters belonging to model families irrelevant to the
// candidate's model type are inert and never fail validation.
func Validate(c *Candidate) error {
	var violations []Violation
	add := func(rule, format string, args ...any) {
		violations = append(violations, Violation{Rule: rule, Detail: fmt.Sprintf(format, args...)})
	}

	if c.IsNN() {
		if layers := c.Layers(); layers != nil {
			n := len(layers.LayerSizes)
			if len(layers.Dropouts) != n || len(layers.WeightInitStddevs) != n ||
				len(layers.BiasInitConsts) != n {
				add("nn_layer_lengths",
					"layer_sizes has %d layers but dropouts=%d, weight_init_stddevs=%d, bias_init_consts=%d",
					n, len(layers.Dropouts), len(layers.WeightInitStddevs), len(layers.BiasInitConsts))
			}
		}
	}

	if c.GetStr("split_strategy") == "train_valid_test" {
		testFrac, foundTest := c.Get("split_test_frac")
		validFrac, foundValid := c.Get("split_valid_frac")
		if foundTest && foundValid && testFrac.Float()+validFrac.Float() >= 1.0 {
			add("split_fractions", "split_test_frac %v + split_valid_frac %v must be < 1.0",
				testFrac.Float(), validFrac.Float())
		}
	}

	if pt := c.GetStr("prediction_type"); pt != "" && !oneOf(pt, predictionTypes) {
		add("prediction_type", "%q is not one of %v", pt, predictionTypes)
	}
	if sp := c.GetStr("splitter"); sp != "" && !oneOf(sp, splitters) {
		add("splitter", "%q is not one of %v", sp, splitters)
	}
	if st := c.GetStr("search_type"); st != "" && !oneOf(st, searchTypes) {
		add("search_type", "%q is not one of %v", st, searchTypes)
	}

	if prev, found := c.Get("previously_split"); found && prev.Type() == params.Bool && prev.Bool() {
		if c.GetStr("split_uuid") == "" {
			add("previously_split", "previously_split=True requires split_uuid")
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}
