package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
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

// LoadFromReader decodes a YAML config from r on top of the defaults and
// validates the result. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero values that YAML may have explicitly nulled
// out or that Default() cannot cover (decoding overwrites whole structs).
func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Remote.Timeout <= 0 {
		cfg.Remote.Timeout = Duration(30 * time.Second)
	}
	if cfg.Local.VoiceWait <= 0 {
		cfg.Local.VoiceWait = Duration(time.Second)
	}
	if cfg.Speech.Locale == "" {
		cfg.Speech.Locale = "es-ES"
	}
	if cfg.Speech.Speed == 0 {
		cfg.Speech.Speed = 1.0
	}
	if cfg.Speech.Player == "" {
		cfg.Speech.Player = "ffplay"
	}
	if cfg.Audit.VoiceWait <= 0 {
		cfg.Audit.VoiceWait = Duration(3 * time.Second)
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Remote.BaseURL == "" {
		errs = append(errs, errors.New("remote.base_url is required"))
	}
	if cfg.Remote.VoiceID == "" {
		errs = append(errs, errors.New("remote.voice_id is required"))
	}
	if cfg.Remote.APIKey == "" {
		slog.Warn("remote.api_key is empty; the synthesis API will likely reject requests")
	}

	if cfg.Fallback.Enabled && cfg.Local.DaemonURL == "" {
		errs = append(errs, errors.New("local.daemon_url is required when fallback.enabled is true"))
	}

	if s := cfg.Speech.Speed; s != 0 && (s < 0.5 || s > 2.0) {
		errs = append(errs, fmt.Errorf("speech.speed %.2f is out of range [0.5, 2.0]", s))
	}
	if p := cfg.Speech.Pitch; p < -10 || p > 10 {
		errs = append(errs, fmt.Errorf("speech.pitch %.2f is out of range [-10, 10]", p))
	}

	return errors.Join(errs...)
}
