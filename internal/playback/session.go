package playback

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/nvaldezz/sonara/pkg/audio"
	"github.com/nvaldezz/sonara/pkg/provider/tts"
)

// State is the lifecycle phase of the playback session.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StatePlaying
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Session is the single-flight state machine owning one speech request
// at a time: Idle → Initializing → Playing → (completed | failed |
// stopped) → Idle. Beginning a new request unconditionally tears down
// the previous one, so at most one backend job or audio playback is
// ever live. All methods are safe for concurrent use.
//
// Begin hands out a generation token identifying the request it
// started. Every later transition takes that token and is refused once
// the request has been preempted by a newer Begin or torn down by Stop,
// so a synthesis result that arrives late cannot attach, mark its
// message spoken, or disturb the request that replaced it.
type Session struct {
	mu sync.Mutex

	state      State
	gen        uint64         // increments on every Begin
	job        tts.Job        // active local backend job, nil otherwise
	playback   audio.Playback // active audio device handle, nil otherwise
	backend    Backend
	voiceLabel string

	lastText      string // most recent spoken text, kept for replay
	lastMessageID string
	lastErr       error

	spoken *spokenSet
}

// NewSession creates an idle session.
func NewSession() *Session {
	return &Session{spoken: newSpokenSet()}
}

// Begin starts a new speech request, preempting any active one, and
// returns the generation token for the new request. Empty or
// whitespace-only text returns ErrNoText without touching session
// state. A messageID that was already spoken (and not cleared by a
// replay) returns ErrDuplicateMessage; pass "" to skip the guard.
func (s *Session) Begin(text, messageID string) (uint64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrNoText
	}

	s.mu.Lock()
	if messageID != "" && s.spoken.Contains(messageID) {
		s.mu.Unlock()
		slog.Debug("ignoring duplicate message", "message_id", messageID)
		return 0, ErrDuplicateMessage
	}
	job, pb := s.takeResourcesLocked()
	s.gen++
	gen := s.gen
	s.state = StateInitializing
	s.backend = BackendNone
	s.voiceLabel = ""
	s.lastErr = nil
	s.lastText = text
	s.lastMessageID = messageID
	s.mu.Unlock()

	// Release outside the lock; Cancel/Stop may block briefly.
	release(job, pb)
	return gen, nil
}

// AttachPlayback transitions to Playing on the remote path: the audio
// device accepted the synthesized audio. Marks the message id spoken.
// Returns false without attaching when gen no longer identifies the
// active request; the caller still owns p and must release it.
func (s *Session) AttachPlayback(gen uint64, p audio.Playback, voiceLabel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.state != StateInitializing {
		return false
	}
	s.playback = p
	s.backend = BackendRemote
	s.voiceLabel = voiceLabel
	s.state = StatePlaying
	s.spoken.Add(s.lastMessageID)
	return true
}

// AttachJob transitions to Playing on the local path: the daemon
// accepted the utterance job. Marks the message id spoken. Returns
// false without attaching when gen no longer identifies the active
// request; the caller still owns j and must cancel it.
func (s *Session) AttachJob(gen uint64, j tts.Job, voiceLabel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.state != StateInitializing {
		return false
	}
	s.job = j
	s.backend = BackendLocal
	s.voiceLabel = voiceLabel
	s.state = StatePlaying
	s.spoken.Add(s.lastMessageID)
	return true
}

// Complete records a clean finish and returns the session to Idle.
// Returns false when gen's request was already preempted or stopped.
func (s *Session) Complete(gen uint64) bool {
	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		return false
	}
	job, pb := s.takeResourcesLocked()
	s.state = StateIdle
	s.mu.Unlock()
	release(job, pb)
	return true
}

// Fail records err, releases resources, and returns the session to
// Idle. The error stays observable via LastError until the next Begin.
// Returns false when gen's request was already preempted or stopped.
func (s *Session) Fail(gen uint64, err error) bool {
	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		return false
	}
	job, pb := s.takeResourcesLocked()
	s.state = StateIdle
	s.lastErr = err
	s.mu.Unlock()
	release(job, pb)
	return true
}

// Stop cancels whatever is in flight and returns to Idle. Calling Stop
// while idle is a no-op. The in-flight backend job is invalidated
// synchronously, so a stale "ended"/"error" notification arriving later
// finds nothing to settle.
func (s *Session) Stop() {
	s.mu.Lock()
	job, pb := s.takeResourcesLocked()
	wasActive := s.state != StateIdle
	s.state = StateIdle
	s.mu.Unlock()

	release(job, pb)
	if wasActive {
		slog.Debug("playback session stopped")
	}
}

// TakeReplay clears the last message id from the spoken guard and
// returns the last spoken text. ok is false when nothing was spoken yet.
func (s *Session) TakeReplay() (text, messageID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastText == "" {
		return "", "", false
	}
	s.spoken.Remove(s.lastMessageID)
	return s.lastText, s.lastMessageID, true
}

// takeResourcesLocked detaches the current job and playback handles.
// Callers release them after unlocking.
func (s *Session) takeResourcesLocked() (tts.Job, audio.Playback) {
	job, pb := s.job, s.playback
	s.job, s.playback = nil, nil
	return job, pb
}

func release(job tts.Job, pb audio.Playback) {
	if job != nil {
		job.Cancel()
	}
	if pb != nil {
		pb.Stop()
	}
}

// Current reports whether gen still identifies the active request.
// Used to discard work for a request that a newer Begin or Stop has
// replaced.
func (s *Session) Current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked(gen)
}

func (s *Session) currentLocked(gen uint64) bool {
	return gen == s.gen && s.state != StateIdle
}

// ---- observers ----

// IsPlaying reports whether audio is currently being produced.
func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StatePlaying
}

// IsInitializing reports whether a speech request is being prepared.
func (s *Session) IsInitializing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateInitializing
}

// LastError returns the error recorded by the most recent failure, or
// nil.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// CurrentBackend returns the backend of the active or most recent
// request.
func (s *Session) CurrentBackend() Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend == "" {
		return BackendNone
	}
	return s.backend
}

// CurrentVoiceLabel returns the voice label of the active or most
// recent request.
func (s *Session) CurrentVoiceLabel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceLabel
}
