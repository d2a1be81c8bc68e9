package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and validates the YAML document at path, overlaying it on
// Defaults(). A missing file is not an error — it returns the defaults
// unmodified, mirroring the teacher's "config doesn't exist yet" bootstrap
// path in loadConfig.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidYAML, path, err)
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrInvalidYAML, path, err)
	}

	if err := CheckUnknownKeys(&node); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg.Extra = extraKeys(&node)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// extraKeys walks the top-level mapping node and returns every key this
// binary doesn't bind to a struct field, so Save can round-trip it.
func extraKeys(doc *yaml.Node) map[string]any {
	extra := map[string]any{}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return extra
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return extra
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		if !knownTopLevelKeys[key] {
			var v any
			_ = root.Content[i+1].Decode(&v)
			extra[key] = v
		}
	}

	return extra
}

var knownTopLevelKeys = map[string]bool{
	"state_db_path": true,
	"log_level":     true,
	"auth":          true,
	"sync":          true,
}
