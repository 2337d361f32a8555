package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScalar(t *testing.T) {
	spec, err := Parse("max_epochs", "100", Int)
	require.NoError(t, err)
	assert.Equal(t, Scalar, spec.Kind)
	assert.Equal(t, int64(100), spec.Scalar().Int())

	spec, err = Parse("learning_rate", "0.0005", Float)
	require.NoError(t, err)
	assert.Equal(t, Scalar, spec.Kind)
	assert.Equal(t, 0.0005, spec.Scalar().Float())

	spec, err = Parse("splitter", "scaffold", Str)
	require.NoError(t, err)
	assert.Equal(t, "scaffold", spec.Scalar().Str())

	// "_" works as a digit separator on integers.
	spec, err = Parse("batch_size", "1_024", Int)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), spec.Scalar().Int())
}

func TestParseFlatList(t *testing.T) {
	spec, err := Parse("rf_estimators", "100,200,300", Int)
	require.NoError(t, err)
	assert.Equal(t, FlatList, spec.Kind)
	require.Len(t, spec.List(), 3)
	assert.Equal(t, int64(200), spec.List()[1].Int())
	assert.True(t, spec.IsMulti())

	// Whitespace around elements is tolerated and normalized away.
	spec, err = Parse("dropout_list", "0.0, 0.2, 0.4", Float)
	require.NoError(t, err)
	require.Len(t, spec.List(), 3)
	assert.Equal(t, 0.4, spec.List()[2].Float())
	assert.Equal(t, "0,0.2,0.4", spec.Encode())
}

func TestParseListOfLists(t *testing.T) {
	spec, err := Parse("layer_sizes", "1024,512 64,64,64 256", Int)
	require.NoError(t, err)
	assert.Equal(t, ListOfLists, spec.Kind)
	groups := spec.Groups()
	require.Len(t, groups, 3)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[1], 3)
	assert.Len(t, groups[2], 1)
	assert.Equal(t, int64(512), groups[0][1].Int())

	// Inner lengths may differ across groups; pairing is the
	// validator's job, not the parser's.
	spec, err = Parse("dropouts", "0.1,0.1 0.2,0.2,0.2 0.0", Float)
	require.NoError(t, err)
	assert.Len(t, spec.Groups(), 3)
}

func TestParseBoolVocabulary(t *testing.T) {
	for _, token := range []string{"TRUE", "True", "true"} {
		spec, err := Parse("previously_split", token, Bool)
		require.NoError(t, err)
		assert.True(t, spec.Scalar().Bool())
	}
	for _, token := range []string{"FALSE", "False", "false"} {
		spec, err := Parse("previously_split", token, Bool)
		require.NoError(t, err)
		assert.False(t, spec.Scalar().Bool())
	}
	for _, token := range []string{"yes", "1", "T", "tRuE", ""} {
		_, err := Parse("previously_split", token, Bool)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr, "token %q should fail", token)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name, raw string
		valueType ValueType
	}{
		{"learning_rate", "fast", Float},
		{"max_epochs", "3.5", Int},
		{"rf_estimators", "100,,300", Int},
		{"layer_sizes", "64,64 abc,32", Int},
		{"anything", "   ", Str},
	}
	for _, c := range cases {
		_, err := Parse(c.name, c.raw, c.valueType)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr, "raw=%q", c.raw)
		assert.Equal(t, c.name, parseErr.Param)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cases := []struct {
		raw       string
		valueType ValueType
	}{
		{"100", Int},
		{"0.0005", Float},
		{"100,200,300,400,500", Int},
		{"0.1,0.2,0.4", Float},
		{"64,64 1024,512,256", Int},
		{"True", Bool},
		{"scaffold,random", Str},
	}
	for _, c := range cases {
		spec, err := Parse("p", c.raw, c.valueType)
		require.NoError(t, err)
		encoded := spec.Encode()
		assert.Equal(t, c.raw, encoded)

		reparsed, err := Parse("p", encoded, c.valueType)
		require.NoError(t, err)
		assert.Equal(t, spec.Kind, reparsed.Kind)
		assert.Equal(t, encoded, reparsed.Encode())
	}
}

func TestValueAccessorsPanicOnWrongType(t *testing.T) {
	v := IntValue(3)
	assert.Panics(t, func() { v.Str() })
	assert.Panics(t, func() { v.Bool() })
	assert.Equal(t, 3.0, v.Float()) // Int converts to Float for convenience.
	assert.Panics(t, func() { StrValue("x").Float() })
}
