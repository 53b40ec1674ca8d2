package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path over [Default] and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over [Default] and validates the result.
// Fields absent from the document keep their default values; unknown fields
// are rejected. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.ASR.Backend != "" && !cfg.ASR.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("asr.backend %q is invalid; valid values: service, native", cfg.ASR.Backend))
	}
	switch cfg.ASR.Backend {
	case BackendService:
		if cfg.ASR.URL == "" {
			errs = append(errs, errors.New("asr.url is required when asr.backend is service"))
		}
	case BackendNative:
		if cfg.ASR.ModelPath == "" {
			errs = append(errs, errors.New("asr.model_path is required when asr.backend is native"))
		}
	}

	if cfg.Align.URL == "" {
		errs = append(errs, errors.New("align.url is required"))
	}
	if cfg.Diarize.URL == "" {
		errs = append(errs, errors.New("diarize.url is required"))
	}
	if cfg.Punct.URL == "" {
		errs = append(errs, errors.New("punctuation.url is required"))
	}

	if cfg.Run.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("run.batch_size %d must not be negative", cfg.Run.BatchSize))
	}
	if cfg.Run.MinSpeakers < 0 {
		errs = append(errs, fmt.Errorf("run.min_speakers %d must not be negative", cfg.Run.MinSpeakers))
	}
	if cfg.Run.MaxSpeakers < 0 {
		errs = append(errs, fmt.Errorf("run.max_speakers %d must not be negative", cfg.Run.MaxSpeakers))
	}
	if cfg.Run.MinSpeakers > 0 && cfg.Run.MaxSpeakers > 0 && cfg.Run.MinSpeakers > cfg.Run.MaxSpeakers {
		errs = append(errs, fmt.Errorf("run.min_speakers %d exceeds run.max_speakers %d", cfg.Run.MinSpeakers, cfg.Run.MaxSpeakers))
	}

	return errors.Join(errs...)
}
