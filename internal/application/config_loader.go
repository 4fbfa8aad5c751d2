package application

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-gvgap/infrastructure/dataset"
)

// ConfigLoader parses and validates run configurations from YAML.
// Parsing is strict: unknown fields are rejected so configuration typos
// fail loudly instead of silently running with defaults.
type ConfigLoader struct{ validator *validator.Validate }

// NewConfigLoader creates a loader ready to parse run configurations.
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{validator: validator.New()}
}

// LoadFromFile reads, parses, and validates a run configuration from a
// YAML file. LoadFromFile returns an error if the file cannot be read,
// if the YAML is malformed or contains unknown fields, or if any
// validation rule fails.
func (cl *ConfigLoader) LoadFromFile(path string) (*RunConfig, error) {
	// Clean the path to prevent directory traversal attacks.
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return cl.load(data)
}

// LoadFromReader reads, parses, and validates a run configuration from
// an io.Reader. Useful for testing and for configurations arriving over
// the network or from stdin.
func (cl *ConfigLoader) LoadFromReader(r io.Reader) (*RunConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	return cl.load(data)
}

func (cl *ConfigLoader) load(data []byte) (*RunConfig, error) {
	config, err := cl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cl.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// parseYAML unmarshals YAML byte data into a RunConfig using strict
// field checking, where unknown fields cause parsing to fail.
func (cl *ConfigLoader) parseYAML(data []byte) (*RunConfig, error) {
	var config RunConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Strict mode - fail on unknown fields.

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

// validateConfig performs struct field validation followed by semantic
// validation of relationships between configuration sections.
func (cl *ConfigLoader) validateConfig(config *RunConfig) error {
	if err := cl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}

	if err := validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}

	return nil
}

// validateSemantics checks constraints that span configuration sections
// and cannot be expressed as per-field validation tags.
func validateSemantics(config *RunConfig) error {
	// Only the embedded pilot sample can be loaded without a file.
	if config.Dataset.Path == "" && config.Dataset.Name != dataset.DatasetGSM8K {
		return fmt.Errorf("dataset %q requires a path; only %q ships with an embedded pilot sample",
			config.Dataset.Name, dataset.DatasetGSM8K)
	}

	// A token budget below one generation completion would exhaust the
	// run before its first response arrives.
	if config.Budget.MaxTokens > 0 && config.Budget.MaxTokens < int64(config.Generation.MaxTokens) {
		return fmt.Errorf("budget max_tokens %d is below generation max_tokens %d; no request could complete",
			config.Budget.MaxTokens, config.Generation.MaxTokens)
	}

	return nil
}
