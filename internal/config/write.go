package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Save writes cfg to path as YAML, merging Extra back in as additional
// top-level keys. The write is temp-file-then-rename, matching the atomic
// replace discipline used throughout this codebase for the token file and
// downloaded content.
func Save(path string, cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	out := map[string]any{}
	for k, v := range cfg.Extra {
		out[k] = v
	}

	// Marshal the typed struct then merge it over Extra so known fields win
	// on key collision (Extra only ever holds keys we don't bind).
	typed, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	var typedMap map[string]any
	if err := yaml.Unmarshal(typed, &typedMap); err != nil {
		return fmt.Errorf("re-decoding config: %w", err)
	}
	for k, v := range typedMap {
		out[k] = v
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling merged config: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("creating temp config file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming config into place: %w", err)
	}

	return nil
}
