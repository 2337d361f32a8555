package search

import (
	"testing"

	"github.com/molml/hypersearch/params"
	"github.com/molml/hypersearch/search/layergen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCandidate(values map[string]params.Value, layers *layergen.Tuple) *Candidate {
	return &Candidate{values: values, layers: layers}
}

func TestValidateLayerLengthMismatch(t *testing.T) {
	c := testCandidate(map[string]params.Value{
		"model_type": params.StrValue("NN"),
	}, &layergen.Tuple{
		LayerSizes:        []int{64, 64},
		Dropouts:          []float64{0.1},
		WeightInitStddevs: []float64{0.02, 0.02},
		BiasInitConsts:    []float64{1.0, 1.0},
	})
	err := Validate(c)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Violations, 1)
	assert.Equal(t, "nn_layer_lengths", vErr.Violations[0].Rule)
}

func TestValidateAllRulesEvaluated(t *testing.T) {
	c := testCandidate(map[string]params.Value{
		"model_type":       params.StrValue("NN"),
		"prediction_type":  params.StrValue("ranking"),
		"splitter":         params.StrValue("alphabetical"),
		"search_type":      params.StrValue("exhaustive"),
		"split_strategy":   params.StrValue("train_valid_test"),
		"split_test_frac":  params.FloatValue(0.5),
		"split_valid_frac": params.FloatValue(0.6),
		"previously_split": params.BoolValue(true),
	}, nil)
	err := Validate(c)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	rules := make(map[string]bool)
	for _, v := range vErr.Violations {
		rules[v.Rule] = true
	}
	for _, rule := range []string{
		"prediction_type", "splitter", "search_type", "split_fractions", "previously_split",
	} {
		assert.True(t, rules[rule], "expected violation of %s", rule)
	}
}

func TestValidateOK(t *testing.T) {
	c := testCandidate(map[string]params.Value{
		"model_type":       params.StrValue("NN"),
		"prediction_type":  params.StrValue("regression"),
		"splitter":         params.StrValue("scaffold"),
		"search_type":      params.StrValue("grid"),
		"split_strategy":   params.StrValue("train_valid_test"),
		"split_test_frac":  params.FloatValue(0.1),
		"split_valid_frac": params.FloatValue(0.1),
		"previously_split": params.BoolValue(false),
	}, &layergen.Tuple{
		LayerSizes:        []int{64},
		Dropouts:          []float64{0.0},
		WeightInitStddevs: []float64{0.02},
		BiasInitConsts:    []float64{1.0},
	})
	require.NoError(t, Validate(c))
}

func TestValidateIrrelevantFamilyIsInert(t *testing.T) {
	// xgb_* values ride along on an NN trial without failing anything.
	c := testCandidate(map[string]params.Value{
		"model_type":        params.StrValue("NN"),
		"xgb_learning_rate": params.FloatValue(123.0),
		"rf_estimators":     params.IntValue(-5),
	}, nil)
	require.NoError(t, Validate(c))
}

func TestValidatePreviouslySplitWithUUID(t *testing.T) {
	c := testCandidate(map[string]params.Value{
		"model_type":       params.StrValue("RF"),
		"previously_split": params.BoolValue(true),
		"split_uuid":       params.StrValue("f2f9a2c6-5d4b-4f7e-9c35-8a1f3f2d6b71"),
	}, nil)
	require.NoError(t, Validate(c))
}
