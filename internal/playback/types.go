// Package playback owns the speech orchestration core: the single
// playback session state machine, the fallback coordinator that
// sequences the remote premium backend before the local speech daemon,
// and the text/prosody conditioning applied before any backend call.
package playback

import "errors"

// Backend identifies which synthesis backend produced an outcome.
type Backend string

const (
	BackendNone   Backend = "none"
	BackendRemote Backend = "remote"
	BackendLocal  Backend = "local"
)

// Outcome is the result of one Speak call. Created once per invocation
// and immutable after return; the coordinator caches the last outcome's
// text for replay.
type Outcome struct {
	Succeeded bool
	Backend   Backend

	// VoiceUsed is the friendly label (remote) or display name (local)
	// of the voice that spoke, "" when nothing was spoken.
	VoiceUsed string

	// ErrorMessage is human-readable and suitable for direct display.
	ErrorMessage string

	// FallbackAttempted reports whether the local backend was tried.
	FallbackAttempted bool

	// Skipped reports that the call was a duplicate of an
	// already-spoken message id and was silently ignored.
	Skipped bool

	// Stopped reports that the session was cancelled mid-flight via
	// Stop; no success or failure is attributed to either backend.
	Stopped bool
}

// ErrNoText rejects empty or whitespace-only input before any backend
// is contacted.
var ErrNoText = errors.New("playback: no text to speak")

// ErrDuplicateMessage marks a speak call whose message id was already
// spoken and not cleared by a replay.
var ErrDuplicateMessage = errors.New("playback: message already spoken")

// AggregateError carries the failures of both backends when the remote
// attempt and the local fallback both failed.
type AggregateError struct {
	RemoteMsg string
	LocalMsg  string
}

func (e *AggregateError) Error() string {
	return "speech failed on both backends: remote: " + e.RemoteMsg + "; local: " + e.LocalMsg
}
