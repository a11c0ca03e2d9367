package tts

import "fmt"

// SynthesisRequest is one remote synthesis call.
type SynthesisRequest struct {
	// Text is the normalized utterance text. Must be non-empty; the
	// orchestration layer rejects empty text before it reaches a backend.
	Text string

	// VoiceID is the premium voice identifier (see voice.PremiumVoices).
	VoiceID string

	// Speed is the speaking-rate multiplier (1.0 = default).
	Speed float64

	// Pitch is the remote service's pitch offset in [-10, +10] with 0 as
	// neutral. Note this differs from the local daemon's [0.5, 2.0]
	// multiplier scale; the coordinator converts between the two.
	Pitch float64
}

// SynthesisResult is a successful remote synthesis.
type SynthesisResult struct {
	// Audio is the encoded audio returned by the service (MP3 unless the
	// provider is configured otherwise).
	Audio []byte
}

// Utterance is one local daemon speech job.
type Utterance struct {
	// JobID uniquely identifies the job for notification matching and
	// cancellation. Assigned by the provider when empty.
	JobID string

	Text string

	// Voice is the display name of the local voice to use. Empty lets
	// the daemon pick its default.
	Voice string

	// Locale hints the daemon's language engine, e.g. "es-ES".
	Locale string

	// Rate, Pitch and Volume are multipliers with 1.0 as neutral. Pitch
	// is clamped by providers to [0.5, 2.0].
	Rate   float64
	Pitch  float64
	Volume float64
}

// RemoteError is a failure reported by the premium backend.
type RemoteError struct {
	// Msg is a human-readable description suitable for display.
	Msg string

	// StatusCode is the HTTP status of the failed call, 0 when the call
	// never completed.
	StatusCode int

	// FallbackAdvisable reports whether the failure is recoverable by
	// attempting the local backend (quota, unsupported voice, transient
	// network trouble) as opposed to a caller error.
	FallbackAdvisable bool
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote tts: %s (status %d)", e.Msg, e.StatusCode)
	}
	return "remote tts: " + e.Msg
}

// LocalError is a failure reported by the local backend, including "no
// usable voice" outcomes from the scorer.
type LocalError struct {
	Msg string
}

func (e *LocalError) Error() string {
	return "local tts: " + e.Msg
}
