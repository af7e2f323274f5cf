package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ApplyOverrides layers --set style key=value pairs onto the config.
// Keys are dotted paths matching the YAML layout, e.g.
// "convergence.tolerance=1e-8" or "engine.step_timeout=30s".
func (c *Config) ApplyOverrides(sets []string) error {
	if len(sets) == 0 {
		return nil
	}

	tree := map[string]any{}
	for _, set := range sets {
		key, value, ok := strings.Cut(set, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid override %q: want key=value", set)
		}
		insert(tree, strings.Split(key, "."), value)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook:       stringToDurationHook,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(tree); err != nil {
		return fmt.Errorf("apply overrides: %w", err)
	}
	return nil
}

func insert(tree map[string]any, path []string, value string) {
	if len(path) == 1 {
		tree[path[0]] = value
		return
	}
	child, ok := tree[path[0]].(map[string]any)
	if !ok {
		child = map[string]any{}
		tree[path[0]] = child
	}
	insert(child, path[1:], value)
}

func stringToDurationHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(Duration(0)) {
		return data, nil
	}
	dur, err := time.ParseDuration(data.(string))
	if err != nil {
		return nil, fmt.Errorf("invalid duration %q: %w", data, err)
	}
	return Duration(dur), nil
}
