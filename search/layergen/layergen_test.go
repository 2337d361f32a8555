package layergen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDepthTwo(t *testing.T) {
	tuples, err := New([]int{2}, []int{16, 32}).
		Dropouts([]float64{0.0, 0.4}).
		MaxFinalLayerSize(32).
		Done()
	require.NoError(t, err)

	// {16,16},{16,32},{32,16},{32,32} crossed with {0.0, 0.4}.
	require.Len(t, tuples, 8)
	wantSizes := [][]int{
		{16, 16}, {16, 16}, {16, 32}, {16, 32},
		{32, 16}, {32, 16}, {32, 32}, {32, 32},
	}
	wantDropouts := []float64{0.0, 0.4, 0.0, 0.4, 0.0, 0.4, 0.0, 0.4}
	for i, tuple := range tuples {
		assert.Equal(t, wantSizes[i], tuple.LayerSizes, "tuple %d", i)
		assert.Equal(t, []float64{wantDropouts[i], wantDropouts[i]}, tuple.Dropouts, "tuple %d", i)
		assert.LessOrEqual(t, tuple.LayerSizes[len(tuple.LayerSizes)-1], 32)
		assert.Equal(t, []float64{0.02, 0.02}, tuple.WeightInitStddevs)
		assert.Equal(t, []float64{1.0, 1.0}, tuple.BiasInitConsts)
	}
}

func TestGenerateDiscardsOversizedFinalLayer(t *testing.T) {
	tuples, err := New([]int{1, 2}, []int{16, 64}).
		MaxFinalLayerSize(32).
		Done()
	require.NoError(t, err)
	// Depth 1: [16]. Depth 2: [16,16], [64,16]. Final layer 64 discarded.
	wantSizes := [][]int{{16}, {16, 16}, {64, 16}}
	require.Len(t, tuples, len(wantSizes))
	for i, tuple := range tuples {
		assert.Equal(t, wantSizes[i], tuple.LayerSizes)
	}
}

func TestGenerateClampDown(t *testing.T) {
	// Every node value exceeds the cap: the final layer is clamped down
	// instead of discarding everything.
	tuples, err := New([]int{1}, []int{64}).
		MaxFinalLayerSize(32).
		Done()
	require.NoError(t, err)
	require.Len(t, tuples, 1)
	assert.Equal(t, []int{32}, tuples[0].LayerSizes)
}

func TestGenerateClampDownDeduplicates(t *testing.T) {
	// [64] and [128] both clamp to [32]; only one tuple survives.
	tuples, err := New([]int{1}, []int{64, 128}).
		MaxFinalLayerSize(32).
		Done()
	require.NoError(t, err)
	require.Len(t, tuples, 1)
	assert.Equal(t, []int{32}, tuples[0].LayerSizes)
}

func TestGenerateDeterministicOrder(t *testing.T) {
	build := func() []Tuple {
		tuples, err := New([]int{2, 1}, []int{8, 4}).
			Dropouts([]float64{0.1, 0.3}).
			MaxFinalLayerSize(8).
			Done()
		require.NoError(t, err)
		return tuples
	}
	first := build()
	second := build()
	assert.Equal(t, first, second)

	// Depths ascending even though layerNums arrived unsorted; node
	// combinations keep the nodeNums input order.
	assert.Equal(t, []int{8}, first[0].LayerSizes)
	assert.Equal(t, []int{4}, first[2].LayerSizes)
	assert.Equal(t, []int{8, 8}, first[4].LayerSizes)
	assert.Equal(t, []int{8, 4}, first[6].LayerSizes)
}

func TestGenerateInputValidation(t *testing.T) {
	_, err := New(nil, []int{16}).Done()
	require.Error(t, err)
	_, err = New([]int{1}, nil).Done()
	require.Error(t, err)
	_, err = New([]int{0}, []int{16}).Done()
	require.Error(t, err)
	_, err = New([]int{1}, []int{16}).Dropouts(nil).Done()
	require.Error(t, err)
	_, err = New([]int{1}, []int{16}).MaxFinalLayerSize(0).Done()
	require.Error(t, err)
}
