// Package tts defines the provider interfaces for the two speech
// synthesis backends sonara orchestrates: a remote premium service that
// returns encoded audio for a whole utterance, and a local on-device
// speech daemon that plays utterances itself and reports progress
// through asynchronous job notifications.
//
// Implementations live in provider-specific subpackages (cloudtts,
// speechd) and must be safe for concurrent use.
package tts

import (
	"context"
	"time"

	"github.com/nvaldezz/sonara/pkg/voice"
)

// Remote is the abstraction over the premium cloud TTS service.
type Remote interface {
	// Synthesize converts req.Text to encoded audio using the requested
	// premium voice and prosody. A failed synthesis returns a
	// [*RemoteError]; its FallbackAdvisable flag tells the caller whether
	// retrying against the local backend is worthwhile.
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
}

// Job is one in-flight utterance on the local backend. The Done channel
// receives exactly one value: nil when the daemon reports the utterance
// ended, or an error when it reports a failure. Cancel is safe to call
// at any time, including after completion.
type Job interface {
	// ID is the unique identity of this job. Notifications from the
	// backend are matched against it so that events from a cancelled,
	// superseded job are ignored.
	ID() string

	Done() <-chan error
	Cancel()
}

// Local is the abstraction over the host platform's speech synthesis
// facility.
type Local interface {
	// Voices returns a snapshot of the currently enumerable voices. The
	// list may be empty shortly after the backend starts, because voice
	// enumeration is asynchronous on most platforms.
	Voices(ctx context.Context) ([]voice.Voice, error)

	// WaitVoices blocks until the voice list has been populated at least
	// once or wait elapses, then returns the current snapshot. The
	// snapshot may still be empty after a timeout; callers proceed with
	// whatever is enumerable.
	WaitVoices(ctx context.Context, wait time.Duration) ([]voice.Voice, error)

	// Speak submits an utterance job. Speak returns once the daemon
	// accepted the job; completion or failure is reported through
	// [Job.Done].
	Speak(ctx context.Context, utt Utterance) (Job, error)

	// Close releases the connection to the backend. Pending jobs fail.
	Close() error
}
