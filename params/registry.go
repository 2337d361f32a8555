package params

import (
	"sort"

	"github.com/gomlx/exceptions"
)

// Search strategy names, as they appear in the search_type parameter and in
// Def.AllowedStrategies.
const (
	SearchGrid      = "grid"
	SearchRandom    = "random"
	SearchGeometric = "geometric"
	SearchUser      = "user_specified"
)

func allStrategies() []string {
	return []string{SearchGrid, SearchRandom, SearchGeometric, SearchUser}
}

// Def declares one recognized parameter: its leaf type, default raw value,
// the search strategies that may expand it, and whether random sampling
// should be log-uniform (conventional for learning rates and the like).
type Def struct {
	Name              string
	Type              ValueType
	Default           string
	AllowedStrategies []string
	LogScale          bool
}

// Allows reports whether the given search strategy may expand this
// parameter into a multi-valued axis.
func (d Def) Allows(strategy string) bool {
	for _, s := range d.AllowedStrategies {
		if s == strategy {
			return true
		}
	}
	return false
}

// Registry is the central table of recognized parameters. Defaulting and
// type resolution happen here, once, instead of at every consumer.
type Registry struct {
	defs map[string]Def
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Def)}
}

// Register adds a parameter definition. Registering an empty or duplicate
// name is a programming error and panics.
func (r *Registry) Register(def Def) {
	if def.Name == "" {
		exceptions.Panicf("params.Registry.Register: empty parameter name")
	}
	if _, found := r.defs[def.Name]; found {
		exceptions.Panicf("params.Registry.Register: parameter %q registered twice", def.Name)
	}
	r.defs[def.Name] = def
}

// Get returns the definition for name, if registered.
func (r *Registry) Get(name string) (Def, bool) {
	def, found := r.defs[name]
	return def, found
}

// Names returns all registered parameter names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseAll resolves a raw name->value mapping into typed specs. Every
// registered parameter gets a spec: from the raw input when present,
// otherwise from its registered default. An unknown name in the input is a
// ParseError, matching how unknown settings are rejected at the command
// line.
func (r *Registry) ParseAll(raw map[string]string) (map[string]*Spec, error) {
	for name := range raw {
		if _, found := r.defs[name]; !found {
			return nil, &ParseError{Param: name, Raw: raw[name], Reason: "unknown parameter"}
		}
	}
	specs := make(map[string]*Spec, len(r.defs))
	for name, def := range r.defs {
		value, found := raw[name]
		if !found {
			if def.Default == "" {
				continue // No value and no default: parameter stays unset.
			}
			value = def.Default
		}
		spec, err := Parse(name, value, def.Type)
		if err != nil {
			return nil, err
		}
		specs[name] = spec
	}
	return specs, nil
}

// Defaults returns the registry with the standard parameter surface of the
// molecular-property modeling pipeline: model routing, split control, the
// NN layer family, and the RF/XGBoost families. Callers can Register
// additional parameters on the returned registry.
func Defaults() *Registry {
	r := NewRegistry()

	// Routing and bookkeeping.
	for _, def := range []Def{
		{Name: "model_type", Type: Str, Default: "NN", AllowedStrategies: []string{SearchUser}},
		{Name: "featurizer", Type: Str, Default: "ecfp", AllowedStrategies: []string{SearchUser}},
		{Name: "prediction_type", Type: Str, Default: "regression"},
		{Name: "descriptor_type", Type: Str, Default: "moe", AllowedStrategies: []string{SearchUser}},
		{Name: "search_type", Type: Str, Default: SearchGrid},
		{Name: "seed", Type: Int, Default: "0"},

		// Dataset splitting.
		{Name: "splitter", Type: Str, Default: "scaffold", AllowedStrategies: []string{SearchUser}},
		{Name: "split_strategy", Type: Str, Default: "train_valid_test"},
		{Name: "split_valid_frac", Type: Float, Default: "0.1"},
		{Name: "split_test_frac", Type: Float, Default: "0.1"},
		{Name: "previously_split", Type: Bool, Default: "False"},
		{Name: "split_uuid", Type: Str},

		// Training control.
		{Name: "learning_rate", Type: Float, Default: "0.0005", AllowedStrategies: allStrategies(), LogScale: true},
		{Name: "max_epochs", Type: Int, Default: "100", AllowedStrategies: allStrategies()},
		{Name: "batch_size", Type: Int, Default: "64", AllowedStrategies: allStrategies()},

		// NN layer family. The multi-valued layer_sizes/dropouts/
		// weight_init_stddevs/bias_init_consts forms are list-of-lists;
		// layer_nums/node_nums/dropout_list feed the combination generator.
		{Name: "layer_sizes", Type: Int, Default: "64,64", AllowedStrategies: []string{SearchUser}},
		{Name: "dropouts", Type: Float, Default: "0,0", AllowedStrategies: []string{SearchUser}},
		{Name: "weight_init_stddevs", Type: Float, AllowedStrategies: []string{SearchUser}},
		{Name: "bias_init_consts", Type: Float, AllowedStrategies: []string{SearchUser}},
		{Name: "layer_nums", Type: Int, AllowedStrategies: []string{SearchUser}},
		{Name: "node_nums", Type: Int, AllowedStrategies: []string{SearchUser}},
		{Name: "dropout_list", Type: Float, AllowedStrategies: []string{SearchUser}},
		{Name: "max_final_layer_size", Type: Int, Default: "32"},

		// Random forest family.
		{Name: "rf_estimators", Type: Int, Default: "500", AllowedStrategies: allStrategies()},
		{Name: "rf_max_features", Type: Int, Default: "32", AllowedStrategies: allStrategies()},
		{Name: "rf_max_depth", Type: Int, AllowedStrategies: allStrategies()},

		// XGBoost family.
		{Name: "xgb_learning_rate", Type: Float, Default: "0.1", AllowedStrategies: allStrategies(), LogScale: true},
		{Name: "xgb_gamma", Type: Float, Default: "0.0", AllowedStrategies: allStrategies(), LogScale: true},
		{Name: "xgb_max_depth", Type: Int, Default: "6", AllowedStrategies: allStrategies()},
		{Name: "xgb_colsample_bytree", Type: Float, Default: "1.0", AllowedStrategies: allStrategies()},
		{Name: "xgb_subsample", Type: Float, Default: "1.0", AllowedStrategies: allStrategies()},
		{Name: "xgb_n_estimators", Type: Int, Default: "100", AllowedStrategies: allStrategies()},
		{Name: "xgb_min_child_weight", Type: Float, Default: "1.0", AllowedStrategies: allStrategies()},
	} {
		r.Register(def)
	}
	return r
}
