package sweet

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/google/jsonschema-go/jsonschema"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SWEET_DB_HOST.
const EnvPrefix = "SWEET_"

//go:embed config_schema.json
var configSchemaJSON []byte

// LoadConfig builds the configuration from defaults, an optional YAML file
// and SWEET_* environment variables, in that order, and validates it.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := ApplyConfigYAML(cfg, data); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyConfigYAML checks a YAML config document against the config schema
// and decodes it onto cfg. Keys absent from the document keep their values.
func ApplyConfigYAML(cfg *Config, data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if doc == nil {
		return nil
	}

	if err := validateConfigDocument(doc); err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}
	return nil
}

func validateConfigDocument(doc map[string]any) error {
	// Round trip through JSON so the validator sees JSON types only.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config document is not JSON compatible: %w", err)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("failed to unmarshal config document: %w", err)
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(configSchemaJSON, &schema); err != nil {
		return fmt.Errorf("failed to unmarshal config schema: %w", err)
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return fmt.Errorf("failed to resolve config schema: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return &ConfigError{Field: "(document)", Message: err.Error()}
	}
	return nil
}
