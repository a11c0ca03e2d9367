package config

// ConfigDiff describes what changed between two configs. Only fields that can
// be applied without restarting the service are tracked; transport
// settings (endpoints, keys) require a restart and are ignored here.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SpeechChanged is set when voice, speed, pitch or locale changed.
	// The coordinator's cached voice selection must be invalidated.
	SpeechChanged bool

	FallbackChanged bool
	NewFallback     bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.SpeechChanged || d.FallbackChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Remote.VoiceID != new.Remote.VoiceID ||
		old.Speech.Speed != new.Speech.Speed ||
		old.Speech.Pitch != new.Speech.Pitch ||
		old.Speech.Locale != new.Speech.Locale {
		d.SpeechChanged = true
	}

	if old.Fallback.Enabled != new.Fallback.Enabled {
		d.FallbackChanged = true
		d.NewFallback = new.Fallback.Enabled
	}

	return d
}
