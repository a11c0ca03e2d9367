package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
remote:
  base_url: https://tts.example.com
  api_key: secret
  voice_id: es-ES-Elvira-Premium
  timeout: 10s
local:
  daemon_url: ws://127.0.0.1:7071/speech
  voice_wait: 500ms
speech:
  locale: es-MX
  speed: 1.2
  pitch: 2
fallback:
  enabled: true
audit:
  voice_wait: 2s
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" || cfg.Server.LogLevel != LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Remote.BaseURL != "https://tts.example.com" || cfg.Remote.VoiceID != "es-ES-Elvira-Premium" {
		t.Errorf("remote = %+v", cfg.Remote)
	}
	if cfg.Remote.Timeout.Std() != 10*time.Second {
		t.Errorf("remote.timeout = %v, want 10s", cfg.Remote.Timeout.Std())
	}
	if cfg.Local.VoiceWait.Std() != 500*time.Millisecond {
		t.Errorf("local.voice_wait = %v, want 500ms", cfg.Local.VoiceWait.Std())
	}
	if cfg.Speech.Locale != "es-MX" || cfg.Speech.Speed != 1.2 || cfg.Speech.Pitch != 2 {
		t.Errorf("speech = %+v", cfg.Speech)
	}
	if !cfg.Fallback.Enabled {
		t.Error("fallback.enabled = false")
	}
	if cfg.Audit.VoiceWait.Std() != 2*time.Second {
		t.Errorf("audit.voice_wait = %v, want 2s", cfg.Audit.VoiceWait.Std())
	}
}

func TestLoadFromReader_DefaultsApplied(t *testing.T) {
	minimal := `
remote:
  base_url: https://tts.example.com
  voice_id: es-ES-Elvira-Premium
local:
  daemon_url: ws://127.0.0.1:7071/speech
`
	cfg, err := LoadFromReader(strings.NewReader(minimal))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("default log_level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Remote.Timeout.Std() != 30*time.Second {
		t.Errorf("default remote.timeout = %v, want 30s", cfg.Remote.Timeout.Std())
	}
	if cfg.Local.VoiceWait.Std() != time.Second {
		t.Errorf("default local.voice_wait = %v, want 1s", cfg.Local.VoiceWait.Std())
	}
	if cfg.Speech.Locale != "es-ES" || cfg.Speech.Speed != 1.0 {
		t.Errorf("speech defaults = %+v", cfg.Speech)
	}
	if cfg.Speech.Player != "ffplay" {
		t.Errorf("default speech.player = %q, want ffplay", cfg.Speech.Player)
	}
	if !cfg.Fallback.Enabled {
		t.Error("fallback not enabled by default")
	}
	if cfg.Audit.VoiceWait.Std() != 3*time.Second {
		t.Errorf("default audit.voice_wait = %v, want 3s", cfg.Audit.VoiceWait.Std())
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	in := validYAML + "\nmystery_field: 42\n"
	if _, err := LoadFromReader(strings.NewReader(in)); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestLoadFromReader_BadDuration(t *testing.T) {
	in := strings.Replace(validYAML, "timeout: 10s", "timeout: soon", 1)
	if _, err := LoadFromReader(strings.NewReader(in)); err == nil {
		t.Fatal("invalid duration accepted")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Remote.BaseURL = "https://tts.example.com"
		cfg.Remote.VoiceID = "es-ES-Elvira-Premium"
		cfg.Remote.APIKey = "secret"
		cfg.Local.DaemonURL = "ws://127.0.0.1:7071/speech"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "verbose" }, "server.log_level"},
		{"missing base url", func(c *Config) { c.Remote.BaseURL = "" }, "remote.base_url"},
		{"missing voice id", func(c *Config) { c.Remote.VoiceID = "" }, "remote.voice_id"},
		{"fallback without daemon", func(c *Config) { c.Local.DaemonURL = "" }, "local.daemon_url"},
		{"speed too high", func(c *Config) { c.Speech.Speed = 2.5 }, "speech.speed"},
		{"speed too low", func(c *Config) { c.Speech.Speed = 0.25 }, "speech.speed"},
		{"pitch out of range", func(c *Config) { c.Speech.Pitch = 11 }, "speech.pitch"},
		{
			"no daemon needed when fallback disabled",
			func(c *Config) { c.Local.DaemonURL = ""; c.Fallback.Enabled = false },
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Speech.Pitch = 99
	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate accepted a broken config")
	}
	for _, frag := range []string{"remote.base_url", "remote.voice_id", "speech.pitch"} {
		if !strings.Contains(err.Error(), frag) {
			t.Errorf("joined error missing %q: %v", frag, err)
		}
	}
}
