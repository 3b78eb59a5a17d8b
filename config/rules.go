package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadRules reads dedup rules from a YAML file. Keys the file leaves out
// keep their defaults; an empty path returns the defaults.
func LoadRules(path string) (models.DedupConfig, error) {
	if path == "" {
		return models.DefaultDedupConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.DedupConfig{}, errors.NewConfigurationError("failed to read rules file %s: %v", path, err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates YAML dedup rules. The document is decoded
// over the defaults, so a key set to zero stays zero.
func ParseRules(data []byte) (models.DedupConfig, error) {
	cfg := models.DefaultDedupConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return models.DedupConfig{}, errors.NewConfigurationError("invalid rules file: %v", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return models.DedupConfig{}, errors.NewConfigurationError("invalid rules: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return models.DedupConfig{}, err
	}
	if err := normalizers.ValidateChains(cfg.Normalizers); err != nil {
		return models.DedupConfig{}, err
	}
	return cfg, nil
}
