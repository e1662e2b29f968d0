package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"kafkasplit/internal/spec"
)

const SupportedSchema = "v1"

// LoadEngineSpec parses an engine YAML, validates schema_version, applies
// defaults and returns the spec with an absolute path to the source config.
func LoadEngineSpec(path string) (spec.File, string, error) {
	var cfg spec.File
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, "", err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, "", fmt.Errorf("engine spec %s: %w", path, err)
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SupportedSchema
	}
	if cfg.SchemaVersion != SupportedSchema {
		return cfg, "", fmt.Errorf("engine schema_version %q not supported (want %q)", cfg.SchemaVersion, SupportedSchema)
	}
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, "", fmt.Errorf("engine spec %s: %w", path, err)
	}

	confPath := cfg.Source.Config
	if confPath != "" && !filepath.IsAbs(confPath) {
		confPath = filepath.Join(filepath.Dir(path), confPath)
	}
	if confPath != "" {
		if abs, err := filepath.Abs(confPath); err == nil {
			confPath = abs
		}
	}
	return cfg, confPath, nil
}

func applyDefaults(cfg *spec.File) {
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = "kafka"
	}
	if cfg.Sink.Kind == "" {
		cfg.Sink.Kind = "arrow"
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 7070
	}
}

func validate(cfg spec.File) error {
	var errs []error
	if cfg.Source.Kind != "kafka" {
		errs = append(errs, fmt.Errorf("unsupported source %q", cfg.Source.Kind))
	}
	if len(cfg.Topics) == 0 {
		errs = append(errs, errors.New("at least one topic is required"))
	}
	switch cfg.Sink.Kind {
	case "arrow", "stdout":
	case "kafka":
		if cfg.Sink.Kafka.Topic == "" {
			errs = append(errs, errors.New("sink.kafka.topic is required for the kafka sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported sink %q", cfg.Sink.Kind))
	}
	if cfg.Sink.MaxRows < 0 {
		errs = append(errs, errors.New("sink.max_rows must not be negative"))
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.GRPCPort < 0 {
		errs = append(errs, errors.New("server ports must not be negative"))
	}
	return errors.Join(errs...)
}
