package search

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/molml/hypersearch/params"
	"github.com/molml/hypersearch/search/layergen"
)

// Candidate is one fully resolved parameter assignment for one trial:
// every recognized parameter mapped to a single typed value, plus the
// layer tuple when the model type includes a neural network. Candidates
// are immutable once produced by the compiler.
type Candidate struct {
	values map[string]params.Value
	layers *layergen.Tuple
}

// Get returns the value assigned to the named parameter.
func (c *Candidate) Get(name string) (params.Value, bool) {
	v, found := c.values[name]
	return v, found
}

// GetStr returns the named parameter as a string, or empty if unset.
func (c *Candidate) GetStr(name string) string {
	v, found := c.values[name]
	if !found || v.Type() != params.Str {
		return ""
	}
	return v.Str()
}

// Layers returns the NN layer tuple, or nil for non-NN candidates.
func (c *Candidate) Layers() *layergen.Tuple { return c.layers }

// Names returns the assigned parameter names, sorted.
func (c *Candidate) Names() []string {
	names := make([]string, 0, len(c.values))
	for name := range c.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsNN reports whether the candidate's model type includes a neural
// network component.
func (c *Candidate) IsNN() bool {
	return strings.Contains(strings.ToUpper(c.GetStr("model_type")), "NN")
}

// MarshalJSON emits the canonical serialization of the candidate: a single
// JSON object with sorted keys, scalar parameters as native JSON values
// and the layer tuple flattened into its four array fields. The same bytes
// feed the dispatch fingerprint and the job-substrate handoff.
func (c *Candidate) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	writeKey := func(key string) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		keyJSON, _ := json.Marshal(key)
		buf.Write(keyJSON)
		buf.WriteByte(':')
	}

	names := c.Names()
	if c.layers != nil {
		names = append(names,
			"layer_sizes", "dropouts", "weight_init_stddevs", "bias_init_consts")
		sort.Strings(names)
	}
	for _, name := range names {
		var payload any
		if c.layers != nil {
			switch name {
			case "layer_sizes":
				payload = c.layers.LayerSizes
			case "dropouts":
				payload = c.layers.Dropouts
			case "weight_init_stddevs":
				payload = c.layers.WeightInitStddevs
			case "bias_init_consts":
				payload = c.layers.BiasInitConsts
			}
		}
		if payload == nil {
			v, found := c.values[name]
			if !found {
				continue
			}
			payload = v
		}
		valueJSON, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		writeKey(name)
		buf.Write(valueJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
