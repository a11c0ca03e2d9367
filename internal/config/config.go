// Package config provides the configuration schema, loader, and file
// watcher for the sonara speech service.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the sonara service.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration wraps time.Duration so YAML configs can use values like
// "500ms" or "3s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure for sonara.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Remote   RemoteConfig   `yaml:"remote"`
	Local    LocalConfig    `yaml:"local"`
	Speech   SpeechConfig   `yaml:"speech"`
	Fallback FallbackConfig `yaml:"fallback"`
	Audit    AuditConfig    `yaml:"audit"`
}

// ServerConfig holds network and logging settings for the diagnostics
// HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the diagnostics server listens on
	// (e.g., ":8080"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// RemoteConfig configures the remote premium synthesis backend.
type RemoteConfig struct {
	// BaseURL is the synthesis API endpoint (e.g., "https://tts.example.com").
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the synthesis API.
	APIKey string `yaml:"api_key"`

	// VoiceID selects the premium voice (e.g., "es-ES-Elvira-Premium").
	VoiceID string `yaml:"voice_id"`

	// Timeout bounds one synthesis round trip. Default: 30s.
	Timeout Duration `yaml:"timeout"`
}

// LocalConfig configures the local speech daemon used for fallback.
type LocalConfig struct {
	// DaemonURL is the daemon's WebSocket endpoint
	// (e.g., "ws://127.0.0.1:7071/speech").
	DaemonURL string `yaml:"daemon_url"`

	// VoiceWait bounds how long a speak request waits for the daemon's
	// asynchronous voice load. Default: 1s.
	VoiceWait Duration `yaml:"voice_wait"`
}

// SpeechConfig holds prosody settings shared by both backends.
type SpeechConfig struct {
	// Locale is the target locale for voice selection. Default: "es-ES".
	Locale string `yaml:"locale"`

	// Speed is the speaking-rate multiplier in [0.5, 2.0]; 0 means 1.0.
	Speed float64 `yaml:"speed"`

	// Pitch is the pitch offset in [-10, +10] on the remote scale; 0 is
	// neutral. The local daemon receives a rescaled multiplier.
	Pitch float64 `yaml:"pitch"`

	// Player is the external audio player binary. Default: "ffplay".
	Player string `yaml:"player"`
}

// FallbackConfig controls the local fallback path.
type FallbackConfig struct {
	// Enabled permits falling back to the local daemon when the remote
	// backend fails recoverably.
	Enabled bool `yaml:"enabled"`
}

// AuditConfig configures voice inventory audit runs.
type AuditConfig struct {
	// VoiceWait bounds how long an audit waits for the daemon's voice
	// list. Default: 3s.
	VoiceWait Duration `yaml:"voice_wait"`
}

// Default returns a Config with the documented defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		Remote: RemoteConfig{
			Timeout: Duration(30 * time.Second),
		},
		Local: LocalConfig{
			VoiceWait: Duration(time.Second),
		},
		Speech: SpeechConfig{
			Locale: "es-ES",
			Speed:  1.0,
			Player: "ffplay",
		},
		Fallback: FallbackConfig{
			Enabled: true,
		},
		Audit: AuditConfig{
			VoiceWait: Duration(3 * time.Second),
		},
	}
}
