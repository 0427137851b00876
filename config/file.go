package config

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"

	"github.com/veridraw/veridraw/log"
)

// LoadFile reads a YAML configuration file and applies all values it
// contains. Nested maps are flattened into slash-separated keys, matching
// the option key layout (category/key).
func LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var loaded map[string]interface{}
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	flat := make(map[string]interface{})
	flatten(flat, loaded, "")

	for key, value := range flat {
		if err := SetConfigOption(key, value); err != nil {
			log.Warningf("config: ignoring %s from %s: %s", key, path, err)
		}
	}
	return nil
}

func flatten(target map[string]interface{}, source map[string]interface{}, prefix string) {
	for key, value := range source {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "/" + key
		}

		sub, ok := value.(map[string]interface{})
		if ok {
			flatten(target, sub, fullKey)
			continue
		}
		target[fullKey] = value
	}
}
