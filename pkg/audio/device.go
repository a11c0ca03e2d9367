// Package audio abstracts the single audio output device that plays
// encoded audio returned by the remote synthesis backend. Exactly one
// playback is active at a time; ownership of the device handle belongs
// to the active playback session.
package audio

import "context"

// Device starts playback of one encoded audio payload.
type Device interface {
	// Play begins playing data and returns a handle for the in-flight
	// playback. The returned Playback settles its Done channel exactly
	// once: nil on clean end-of-audio, an error on device failure.
	Play(ctx context.Context, data []byte) (Playback, error)
}

// Playback is one in-flight audio playback.
type Playback interface {
	Done() <-chan error

	// Stop aborts playback. Safe to call at any time, including after
	// the playback has already finished.
	Stop()
}

// PlaybackError is a device-level failure, distinct from a synthesis
// failure: the audio bytes were produced fine but could not be played.
type PlaybackError struct {
	Msg string
}

func (e *PlaybackError) Error() string {
	return "audio playback: " + e.Msg
}
