package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nvaldezz/sonara/internal/observe"
	"github.com/nvaldezz/sonara/internal/resilience"
	"github.com/nvaldezz/sonara/pkg/audio"
	"github.com/nvaldezz/sonara/pkg/provider/tts"
	"github.com/nvaldezz/sonara/pkg/voice"
)

// Config holds the speech settings for a Coordinator.
type Config struct {
	// VoiceID is the premium voice used for remote synthesis.
	VoiceID string

	// Speed is the speaking-rate multiplier (0 means 1.0).
	Speed float64

	// Pitch is the remote-scale pitch offset in [-10, +10].
	Pitch float64

	// Locale is the target locale prefix for local voice selection.
	// Defaults to "es-ES".
	Locale string

	// FallbackEnabled permits the local backend attempt when the remote
	// backend fails recoverably.
	FallbackEnabled bool

	// VoiceWait bounds how long the coordinator waits for the local
	// voice list to populate before scoring. Defaults to 1s.
	VoiceWait time.Duration
}

// Option is a functional option for configuring a Coordinator.
type Option func(*Coordinator)

// WithMetrics attaches metric instruments. Without it no metrics are
// recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithBreaker replaces the remote backend's circuit breaker. Mainly for
// tests that need deterministic breaker behaviour.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Coordinator) { c.breaker = b }
}

// Coordinator sequences one speak request across the two backends:
// remote premium first, then — on a recoverable failure — the local
// daemon using the scorer's best voice. It owns the playback session
// and is the caller-facing surface of the orchestration core.
type Coordinator struct {
	remote  tts.Remote
	local   tts.Local
	device  audio.Device
	session *Session
	breaker *resilience.Breaker
	metrics *observe.Metrics
	cfg     Config

	// fallbackOn mirrors cfg.FallbackEnabled but can be toggled at
	// runtime by a config reload.
	fallbackOn atomic.Bool

	// selCh holds the cached scorer selection (nil when unscored) and
	// doubles as its mutex. Reset via InvalidateVoiceCache.
	selCh chan *voice.Selection
}

// NewCoordinator creates a Coordinator. remote, local and device must
// be non-nil.
func NewCoordinator(remote tts.Remote, local tts.Local, device audio.Device, cfg Config, opts ...Option) *Coordinator {
	if cfg.Locale == "" {
		cfg.Locale = "es-ES"
	}
	if cfg.Speed == 0 {
		cfg.Speed = 1.0
	}
	if cfg.VoiceWait <= 0 {
		cfg.VoiceWait = time.Second
	}
	c := &Coordinator{
		remote:  remote,
		local:   local,
		device:  device,
		session: NewSession(),
		breaker: resilience.New(resilience.Config{Name: "remote-tts"}),
		cfg:     cfg,
		selCh:   make(chan *voice.Selection, 1),
	}
	c.selCh <- nil
	c.fallbackOn.Store(cfg.FallbackEnabled)
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetFallbackEnabled toggles the local fallback path at runtime.
func (c *Coordinator) SetFallbackEnabled(on bool) {
	c.fallbackOn.Store(on)
}

// Speak speaks text, preferring the remote premium backend and falling
// back to the local daemon on a recoverable remote failure. messageID
// may be "" to skip the duplicate guard. Speak blocks until playback
// finishes, fails, or is stopped; the returned Outcome is created once
// per call and is never mutated afterwards.
func (c *Coordinator) Speak(ctx context.Context, text, messageID string) Outcome {
	ctx, span := observe.StartSpan(ctx, "playback.Speak")
	defer span.End()
	log := observe.Logger(ctx)

	gen, err := c.session.Begin(text, messageID)
	if err != nil {
		if errors.Is(err, ErrDuplicateMessage) {
			return Outcome{Backend: BackendNone, Skipped: true}
		}
		c.count("none", "rejected")
		return Outcome{Backend: BackendNone, ErrorMessage: "there is no text to speak"}
	}
	c.sessions(1)
	defer c.sessions(-1)

	normalized := Normalize(text)
	if normalized == "" {
		// Markdown stripping can leave nothing behind (e.g. a bare code block).
		c.session.Fail(gen, ErrNoText)
		c.count("none", "rejected")
		return Outcome{Backend: BackendNone, ErrorMessage: "there is no speakable text in this message"}
	}

	out, remoteErr := c.tryRemote(ctx, gen, normalized)
	if remoteErr == nil {
		c.recordOutcome(*out)
		return *out
	}
	log.Warn("remote synthesis failed", "err", remoteErr)
	c.countErr("remote")
	final := c.afterRemoteFailure(ctx, gen, normalized, remoteErr)
	c.recordOutcome(final)
	return final
}

// tryRemote runs the remote attempt end to end (synthesis plus device
// playback). A non-nil Outcome is final; a non-nil error means the
// remote synthesis itself failed and fallback may apply. Synthesis can
// outlive the request that started it, so every step after it verifies
// gen before touching the session or the device.
func (c *Coordinator) tryRemote(ctx context.Context, gen uint64, text string) (*Outcome, error) {
	var res *tts.SynthesisResult
	start := time.Now()
	err := c.breaker.Execute(func() error {
		r, synthErr := c.remote.Synthesize(ctx, tts.SynthesisRequest{
			Text:    text,
			VoiceID: c.cfg.VoiceID,
			Speed:   c.cfg.Speed,
			Pitch:   c.cfg.Pitch,
		})
		res = r
		return synthErr
	})
	c.duration("remote", time.Since(start))
	if err != nil {
		return nil, err
	}

	if !c.session.Current(gen) {
		// Stopped or preempted while synthesis was in flight; the audio
		// must not reach the device.
		return &Outcome{Backend: BackendRemote, Stopped: true}, nil
	}

	label := voice.LabelFor(c.cfg.VoiceID)
	pb, err := c.device.Play(ctx, res.Audio)
	if err != nil {
		// Synthesis worked but the device did not. The device is shared by
		// both paths, so retrying locally would hit the same wall; surface
		// this as a playback failure instead.
		c.session.Fail(gen, err)
		c.countErr("audio")
		return &Outcome{Backend: BackendRemote, ErrorMessage: err.Error()}, nil
	}
	if !c.session.AttachPlayback(gen, pb, label) {
		pb.Stop()
		return &Outcome{Backend: BackendRemote, Stopped: true}, nil
	}

	select {
	case err := <-pb.Done():
		switch {
		case errors.Is(err, context.Canceled):
			return &Outcome{Backend: BackendRemote, Stopped: true}, nil
		case err != nil:
			if !c.session.Fail(gen, err) {
				return &Outcome{Backend: BackendRemote, Stopped: true}, nil
			}
			c.countErr("audio")
			return &Outcome{Backend: BackendRemote, VoiceUsed: label, ErrorMessage: err.Error()}, nil
		}
		if !c.session.Complete(gen) {
			// A newer Speak preempted us between Done and here.
			return &Outcome{Backend: BackendRemote, Stopped: true}, nil
		}
		c.count("remote", "ok")
		return &Outcome{Succeeded: true, Backend: BackendRemote, VoiceUsed: label}, nil

	case <-ctx.Done():
		if c.session.Current(gen) {
			c.session.Stop()
		}
		return &Outcome{Backend: BackendRemote, Stopped: true}, nil
	}
}

// afterRemoteFailure decides whether the local fallback applies and
// runs it.
func (c *Coordinator) afterRemoteFailure(ctx context.Context, gen uint64, text string, remoteErr error) Outcome {
	advisable := errors.Is(remoteErr, resilience.ErrOpen)
	var re *tts.RemoteError
	if errors.As(remoteErr, &re) {
		advisable = advisable || re.FallbackAdvisable
	}

	if !advisable || !c.fallbackOn.Load() {
		if !c.session.Fail(gen, remoteErr) {
			return Outcome{Backend: BackendNone, Stopped: true}
		}
		c.count("remote", "failed")
		return Outcome{Backend: BackendNone, ErrorMessage: remoteMessage(remoteErr)}
	}

	c.fallbacks()
	out := c.tryLocal(ctx, gen, text, remoteErr)
	return out
}

// tryLocal runs the local daemon attempt using the scorer's selection.
func (c *Coordinator) tryLocal(ctx context.Context, gen uint64, text string, remoteErr error) Outcome {
	sel := c.voiceSelection(ctx)
	if sel.Voice == nil {
		err := &AggregateError{
			RemoteMsg: remoteMessage(remoteErr),
			LocalMsg:  "no usable local voice: " + sel.Reasoning,
		}
		if !c.session.Fail(gen, err) {
			return Outcome{Backend: BackendNone, Stopped: true, FallbackAttempted: true}
		}
		c.countErr("local")
		c.count("none", "failed")
		return Outcome{Backend: BackendNone, FallbackAttempted: true, ErrorMessage: err.Error()}
	}

	start := time.Now()
	job, err := c.local.Speak(ctx, tts.Utterance{
		Text:   text,
		Voice:  sel.Name,
		Locale: c.cfg.Locale,
		Rate:   c.cfg.Speed,
		Pitch:  RemotePitchToLocal(c.cfg.Pitch),
		Volume: 1.0,
	})
	if err != nil {
		agg := &AggregateError{RemoteMsg: remoteMessage(remoteErr), LocalMsg: err.Error()}
		if !c.session.Fail(gen, agg) {
			return Outcome{Backend: BackendNone, Stopped: true, FallbackAttempted: true}
		}
		c.countErr("local")
		c.count("none", "failed")
		return Outcome{Backend: BackendNone, FallbackAttempted: true, ErrorMessage: agg.Error()}
	}
	if !c.session.AttachJob(gen, job, sel.Name) {
		job.Cancel()
		return Outcome{Backend: BackendLocal, Stopped: true, FallbackAttempted: true}
	}

	select {
	case err := <-job.Done():
		c.duration("local", time.Since(start))
		switch {
		case errors.Is(err, context.Canceled):
			return Outcome{Backend: BackendLocal, Stopped: true, FallbackAttempted: true}
		case err != nil:
			agg := &AggregateError{RemoteMsg: remoteMessage(remoteErr), LocalMsg: err.Error()}
			if !c.session.Fail(gen, agg) {
				return Outcome{Backend: BackendLocal, Stopped: true, FallbackAttempted: true}
			}
			c.countErr("local")
			c.count("none", "failed")
			return Outcome{Backend: BackendNone, FallbackAttempted: true, ErrorMessage: agg.Error()}
		}
		if !c.session.Complete(gen) {
			return Outcome{Backend: BackendLocal, Stopped: true, FallbackAttempted: true}
		}
		c.count("local", "ok")
		return Outcome{Succeeded: true, Backend: BackendLocal, VoiceUsed: sel.Name, FallbackAttempted: true}

	case <-ctx.Done():
		if c.session.Current(gen) {
			c.session.Stop()
		}
		return Outcome{Backend: BackendLocal, Stopped: true, FallbackAttempted: true}
	}
}

// voiceSelection returns the cached scorer selection, scoring once per
// orchestration context. Only selections that found a voice are cached;
// an empty voice list (daemon still loading) is re-scored on the next
// call.
func (c *Coordinator) voiceSelection(ctx context.Context) voice.Selection {
	cached := <-c.selCh
	if cached != nil {
		c.selCh <- cached
		return *cached
	}

	voices, err := c.local.WaitVoices(ctx, c.cfg.VoiceWait)
	if err != nil {
		slog.Warn("local voice enumeration failed", "err", err)
		voices = nil
	}
	sel := voice.SelectBest(voices, voice.Target{
		LocalePrefix:  c.cfg.Locale,
		RequireFemale: true,
		AllowFallback: true,
	})
	if sel.Voice != nil {
		slog.Info("selected local voice",
			"voice", sel.Name, "tier", sel.Tier,
			"confidence", sel.Confidence, "reason", sel.Reasoning)
		c.selCh <- &sel
	} else {
		c.selCh <- nil
	}
	return sel
}

// InvalidateVoiceCache clears the cached scorer selection so the next
// fallback re-scores the voice list.
func (c *Coordinator) InvalidateVoiceCache() {
	<-c.selCh
	c.selCh <- nil
}

// Stop cancels any in-flight speech. Safe to call at any time,
// including when idle.
func (c *Coordinator) Stop() {
	c.session.Stop()
}

// Replay speaks the most recent text again, clearing its message id
// from the duplicate guard first. Returns false when nothing has been
// spoken yet.
func (c *Coordinator) Replay(ctx context.Context) (Outcome, bool) {
	text, messageID, ok := c.session.TakeReplay()
	if !ok {
		return Outcome{}, false
	}
	return c.Speak(ctx, text, messageID), true
}

// ---- read-only state observers ----

func (c *Coordinator) IsPlaying() bool          { return c.session.IsPlaying() }
func (c *Coordinator) IsInitializing() bool     { return c.session.IsInitializing() }
func (c *Coordinator) LastError() error         { return c.session.LastError() }
func (c *Coordinator) CurrentBackend() Backend  { return c.session.CurrentBackend() }
func (c *Coordinator) CurrentVoiceLabel() string { return c.session.CurrentVoiceLabel() }

// ---- helpers ----

// remoteMessage extracts a display-worthy message from a remote failure.
func remoteMessage(err error) string {
	if errors.Is(err, resilience.ErrOpen) {
		return "premium speech service temporarily unavailable"
	}
	var re *tts.RemoteError
	if errors.As(err, &re) {
		return re.Msg
	}
	return err.Error()
}

func (c *Coordinator) recordOutcome(out Outcome) {
	if out.Stopped {
		c.count(string(out.Backend), "stopped")
	}
}

func (c *Coordinator) count(backend, status string) {
	if c.metrics == nil {
		return
	}
	c.metrics.SpeakRequests.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("status", status),
	))
}

func (c *Coordinator) countErr(backend string) {
	if c.metrics == nil {
		return
	}
	c.metrics.BackendErrors.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("backend", backend),
	))
}

func (c *Coordinator) fallbacks() {
	if c.metrics == nil {
		return
	}
	c.metrics.FallbackAttempts.Add(context.Background(), 1)
}

func (c *Coordinator) duration(backend string, d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.SynthesisDuration.Record(context.Background(), d.Seconds(), metric.WithAttributes(
		attribute.String("backend", backend),
	))
}

func (c *Coordinator) sessions(delta int64) {
	if c.metrics == nil {
		return
	}
	c.metrics.ActiveSessions.Add(context.Background(), delta)
}
