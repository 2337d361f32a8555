// Package config assembles the raw parameter mapping that feeds the
// search compiler: a JSON or YAML parameter file, optionally overlaid
// with "name=value" command-line overrides.
//
// Values stay strings here -- typing and validation are the params
// package's job. File values that are numbers, booleans or arrays are
// rendered to the string grammar the parser expects: commas join list
// elements, spaces join nested groups.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Load reads a parameter file into a raw name->string mapping. The format
// follows the file extension: .json, or .yaml/.yml.
func Load(path string) (map[string]string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read parameter file %q", path)
	}
	var decoded map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(contents, &decoded); err != nil {
			return nil, errors.Wrapf(err, "failed to parse JSON parameter file %q", path)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(contents, &decoded); err != nil {
			return nil, errors.Wrapf(err, "failed to parse YAML parameter file %q", path)
		}
	default:
		return nil, errors.Errorf("parameter file %q: unsupported extension %q (want .json, .yaml or .yml)", path, ext)
	}

	raw := make(map[string]string, len(decoded))
	for name, value := range decoded {
		rendered, err := render(value, false)
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %q in %q", name, path)
		}
		raw[name] = rendered
	}
	return raw, nil
}

// render converts a decoded file value to the raw string grammar. nested
// guards against arrays more than two levels deep.
func render(value any, nested bool) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		if v {
			return "True", nil
		}
		return "False", nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case []any:
		parts := make([]string, 0, len(v))
		sep := ","
		for _, elem := range v {
			if _, isList := elem.([]any); isList {
				if nested {
					return "", errors.Errorf("arrays nested more than two levels are not supported")
				}
				sep = " " // list of lists: space-separated comma groups
			}
			rendered, err := render(elem, true)
			if err != nil {
				return "", err
			}
			parts = append(parts, rendered)
		}
		return strings.Join(parts, sep), nil
	}
	return "", errors.Errorf("unsupported value type %T", value)
}

// ApplyOverrides overlays command-line settings onto a raw mapping. Each
// entry is "name=value"; entries are also accepted ";"-separated within
// one string. An entry "file:overrides.txt" reads more settings from a
// file, one per line, "#" starting a comment.
func ApplyOverrides(raw map[string]string, overrides []string) error {
	for _, entry := range overrides {
		for _, setting := range strings.Split(entry, ";") {
			if err := applySetting(raw, setting); err != nil {
				return err
			}
		}
	}
	return nil
}

func applySetting(raw map[string]string, setting string) error {
	setting = strings.TrimSpace(setting)
	if setting == "" {
		return nil
	}
	if path, found := strings.CutPrefix(setting, "file:"); found {
		contents, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read settings from file %q", path)
		}
		for _, line := range strings.Split(string(contents), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			for _, inner := range strings.Split(line, ";") {
				if err := applySetting(raw, inner); err != nil {
					return err
				}
			}
		}
		return nil
	}
	name, value, found := strings.Cut(setting, "=")
	if !found {
		return errors.Errorf("can't parse setting %q: want the format \"name=value\"", setting)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.Errorf("can't parse setting %q: empty parameter name", setting)
	}
	raw[name] = strings.TrimSpace(value)
	return nil
}

// Sprint pretty-prints a raw mapping, one parameter per line, sorted, for
// diagnostics.
func Sprint(raw map[string]string) string {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "\t%q: %s\n", name, raw[name])
	}
	return sb.String()
}
