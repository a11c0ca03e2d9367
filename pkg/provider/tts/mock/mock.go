// Package mock provides in-memory implementations of the tts provider
// interfaces for use in tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/nvaldezz/sonara/pkg/provider/tts"
	"github.com/nvaldezz/sonara/pkg/voice"
)

// Remote is a scriptable tts.Remote. Zero value succeeds with empty audio.
type Remote struct {
	mu sync.Mutex

	// Result is returned on success. When nil, a result with Audio set
	// to []byte("audio") is returned.
	Result *tts.SynthesisResult

	// Err, when non-nil, is returned instead of a result.
	Err error

	// Calls records every request received.
	Calls []tts.SynthesisRequest
}

var _ tts.Remote = (*Remote)(nil)

func (m *Remote) Synthesize(_ context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &tts.SynthesisResult{Audio: []byte("audio")}, nil
}

// CallCount returns the number of Synthesize calls received.
func (m *Remote) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Job is a controllable tts.Job.
type Job struct {
	JobID string

	done      chan error
	once      sync.Once
	cancelled bool
	mu        sync.Mutex
}

var _ tts.Job = (*Job)(nil)

// NewJob creates a Job with a buffered done channel.
func NewJob(id string) *Job {
	return &Job{JobID: id, done: make(chan error, 1)}
}

func (j *Job) ID() string { return j.JobID }

func (j *Job) Done() <-chan error { return j.done }

func (j *Job) Cancel() {
	j.mu.Lock()
	j.cancelled = true
	j.mu.Unlock()
	j.Finish(context.Canceled)
}

// Cancelled reports whether Cancel was called.
func (j *Job) Cancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// Finish settles the job exactly once.
func (j *Job) Finish(err error) {
	j.once.Do(func() { j.done <- err })
}

// Local is a scriptable tts.Local.
type Local struct {
	mu sync.Mutex

	// VoiceList is returned by Voices and WaitVoices.
	VoiceList []voice.Voice

	// VoicesErr, when non-nil, fails Voices and WaitVoices.
	VoicesErr error

	// SpeakErr, when non-nil, fails Speak immediately.
	SpeakErr error

	// FinishWith settles each submitted job as soon as it is created.
	// Leave AutoFinish false to settle jobs manually via Jobs.
	AutoFinish bool
	FinishWith error

	// SpeakCalls records every utterance submitted.
	SpeakCalls []tts.Utterance

	// Jobs holds every job created by Speak, in order.
	Jobs []*Job

	closed bool
}

var _ tts.Local = (*Local)(nil)

func (m *Local) Voices(context.Context) ([]voice.Voice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.VoicesErr != nil {
		return nil, m.VoicesErr
	}
	return append([]voice.Voice(nil), m.VoiceList...), nil
}

func (m *Local) WaitVoices(ctx context.Context, _ time.Duration) ([]voice.Voice, error) {
	return m.Voices(ctx)
}

func (m *Local) Speak(_ context.Context, utt tts.Utterance) (tts.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SpeakCalls = append(m.SpeakCalls, utt)
	if m.SpeakErr != nil {
		return nil, m.SpeakErr
	}
	id := utt.JobID
	if id == "" {
		id = "mock-job"
	}
	j := NewJob(id)
	m.Jobs = append(m.Jobs, j)
	if m.AutoFinish {
		j.Finish(m.FinishWith)
	}
	return j, nil
}

func (m *Local) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *Local) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SpeakCount returns the number of Speak calls received.
func (m *Local) SpeakCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SpeakCalls)
}
