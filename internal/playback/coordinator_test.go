package playback

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nvaldezz/sonara/pkg/audio"
	audiomock "github.com/nvaldezz/sonara/pkg/audio/mock"
	"github.com/nvaldezz/sonara/pkg/provider/tts"
	ttsmock "github.com/nvaldezz/sonara/pkg/provider/tts/mock"
	"github.com/nvaldezz/sonara/pkg/voice"
)

// spanishVoices is a plausible local daemon voice list with exactly one
// Spanish female voice.
var spanishVoices = []voice.Voice{
	{Name: "Alex", Locale: "en-US", LocalService: true},
	{Name: "Jorge", Locale: "es-ES", LocalService: true},
	{Name: "Mónica", Locale: "es-ES", LocalService: true},
}

func newTestCoordinator(remote *ttsmock.Remote, local *ttsmock.Local, device *audiomock.Device, cfg Config) *Coordinator {
	if cfg.VoiceID == "" {
		cfg.VoiceID = "es-ES-Elvira-Premium"
	}
	if cfg.VoiceWait == 0 {
		cfg.VoiceWait = 10 * time.Millisecond
	}
	return NewCoordinator(remote, local, device, cfg)
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestCoordinator_RemoteSuccess(t *testing.T) {
	remote := &ttsmock.Remote{}
	local := &ttsmock.Local{VoiceList: spanishVoices}
	device := &audiomock.Device{AutoFinish: true}
	c := newTestCoordinator(remote, local, device, Config{FallbackEnabled: true})

	out := c.Speak(context.Background(), "¡Hola! ¿Cómo estás?", "m1")

	if !out.Succeeded || out.Backend != BackendRemote {
		t.Fatalf("outcome = %+v, want remote success", out)
	}
	if out.FallbackAttempted {
		t.Error("fallback attempted on a healthy remote")
	}
	if want := voice.LabelFor("es-ES-Elvira-Premium"); out.VoiceUsed != want {
		t.Errorf("VoiceUsed = %q, want %q", out.VoiceUsed, want)
	}
	if local.SpeakCount() != 0 {
		t.Error("local backend was contacted")
	}
	if device.PlayCount() != 1 {
		t.Errorf("PlayCount = %d, want 1", device.PlayCount())
	}
	if c.IsPlaying() {
		t.Error("still playing after completed Speak")
	}
}

func TestCoordinator_NormalizesBeforeSynthesis(t *testing.T) {
	remote := &ttsmock.Remote{}
	device := &audiomock.Device{AutoFinish: true}
	c := newTestCoordinator(remote, &ttsmock.Local{}, device, Config{})

	c.Speak(context.Background(), "Esto es **muy** importante.", "m1")

	if remote.CallCount() != 1 {
		t.Fatalf("CallCount = %d, want 1", remote.CallCount())
	}
	if got := remote.Calls[0].Text; got != "Esto es muy importante." {
		t.Errorf("synthesized text = %q, markdown not stripped", got)
	}
}

func TestCoordinator_AdvisableFailureFallsBackToLocal(t *testing.T) {
	remote := &ttsmock.Remote{Err: &tts.RemoteError{
		Msg: "monthly quota exhausted", StatusCode: 429, FallbackAdvisable: true,
	}}
	local := &ttsmock.Local{VoiceList: spanishVoices, AutoFinish: true}
	device := &audiomock.Device{}
	c := newTestCoordinator(remote, local, device, Config{FallbackEnabled: true})

	out := c.Speak(context.Background(), "¡Hola! ¿Cómo estás?", "m1")

	if !out.Succeeded || out.Backend != BackendLocal {
		t.Fatalf("outcome = %+v, want local success", out)
	}
	if !out.FallbackAttempted {
		t.Error("FallbackAttempted not set")
	}
	if out.VoiceUsed != "Mónica" {
		t.Errorf("VoiceUsed = %q, want Mónica", out.VoiceUsed)
	}
	if local.SpeakCount() != 1 {
		t.Fatalf("SpeakCount = %d, want 1", local.SpeakCount())
	}
	utt := local.SpeakCalls[0]
	if utt.Voice != "Mónica" || utt.Locale != "es-ES" {
		t.Errorf("utterance voice/locale = %q/%q", utt.Voice, utt.Locale)
	}
	if utt.Text != "¡Hola! ¿Cómo estás?" {
		t.Errorf("utterance text = %q", utt.Text)
	}
}

func TestCoordinator_FallbackWithSingleMexicanVoice(t *testing.T) {
	remote := &ttsmock.Remote{Err: &tts.RemoteError{
		Msg: "synthesis failed", FallbackAdvisable: true,
	}}
	local := &ttsmock.Local{
		VoiceList:  []voice.Voice{{Name: "Paulina", Locale: "es-MX", LocalService: true}},
		AutoFinish: true,
	}
	c := newTestCoordinator(remote, local, &audiomock.Device{}, Config{FallbackEnabled: true})

	out := c.Speak(context.Background(), "¡Hola! ¿Cómo estás?", "m1")

	if !out.Succeeded || out.Backend != BackendLocal {
		t.Fatalf("outcome = %+v, want local success", out)
	}
	if out.VoiceUsed != "Paulina" || !out.FallbackAttempted {
		t.Errorf("outcome = %+v, want Paulina with fallback attempted", out)
	}
}

func TestCoordinator_NonAdvisableFailureNeverFallsBack(t *testing.T) {
	remote := &ttsmock.Remote{Err: &tts.RemoteError{
		Msg: "voice id not found", StatusCode: 400, FallbackAdvisable: false,
	}}
	local := &ttsmock.Local{VoiceList: spanishVoices, AutoFinish: true}
	c := newTestCoordinator(remote, local, &audiomock.Device{}, Config{FallbackEnabled: true})

	out := c.Speak(context.Background(), "hola", "m1")

	if out.Succeeded {
		t.Fatal("outcome succeeded despite remote failure")
	}
	if out.FallbackAttempted || local.SpeakCount() != 0 {
		t.Error("local backend was attempted on a non-recoverable failure")
	}
	if out.ErrorMessage != "voice id not found" {
		t.Errorf("ErrorMessage = %q", out.ErrorMessage)
	}
}

func TestCoordinator_FallbackDisabled(t *testing.T) {
	remote := &ttsmock.Remote{Err: &tts.RemoteError{
		Msg: "quota exhausted", StatusCode: 429, FallbackAdvisable: true,
	}}
	local := &ttsmock.Local{VoiceList: spanishVoices, AutoFinish: true}
	c := newTestCoordinator(remote, local, &audiomock.Device{}, Config{FallbackEnabled: false})

	out := c.Speak(context.Background(), "hola", "m1")

	if out.Succeeded || out.FallbackAttempted || local.SpeakCount() != 0 {
		t.Errorf("outcome = %+v, local count = %d; fallback ran while disabled", out, local.SpeakCount())
	}
}

func TestCoordinator_BothBackendsFailAggregates(t *testing.T) {
	remote := &ttsmock.Remote{Err: &tts.RemoteError{
		Msg: "service unavailable", StatusCode: 503, FallbackAdvisable: true,
	}}
	local := &ttsmock.Local{VoiceList: spanishVoices, SpeakErr: &tts.LocalError{Msg: "daemon connection lost"}}
	c := newTestCoordinator(remote, local, &audiomock.Device{}, Config{FallbackEnabled: true})

	out := c.Speak(context.Background(), "hola", "m1")

	if out.Succeeded {
		t.Fatal("outcome succeeded despite both backends failing")
	}
	if !out.FallbackAttempted {
		t.Error("FallbackAttempted not set")
	}
	for _, frag := range []string{"service unavailable", "daemon connection lost"} {
		if !strings.Contains(out.ErrorMessage, frag) {
			t.Errorf("ErrorMessage %q missing %q", out.ErrorMessage, frag)
		}
	}
	if le := c.LastError(); le == nil {
		t.Error("LastError is nil after aggregate failure")
	}
}

func TestCoordinator_NoUsableLocalVoice(t *testing.T) {
	remote := &ttsmock.Remote{Err: &tts.RemoteError{
		Msg: "quota exhausted", StatusCode: 429, FallbackAdvisable: true,
	}}
	local := &ttsmock.Local{} // empty voice list
	c := newTestCoordinator(remote, local, &audiomock.Device{}, Config{FallbackEnabled: true})

	out := c.Speak(context.Background(), "hola", "m1")

	if out.Succeeded {
		t.Fatal("succeeded with no local voices")
	}
	if !out.FallbackAttempted {
		t.Error("FallbackAttempted not set")
	}
	if local.SpeakCount() != 0 {
		t.Error("Speak reached the daemon without a selected voice")
	}
}

func TestCoordinator_DuplicateMessageSkipped(t *testing.T) {
	remote := &ttsmock.Remote{}
	device := &audiomock.Device{AutoFinish: true}
	c := newTestCoordinator(remote, &ttsmock.Local{}, device, Config{})

	first := c.Speak(context.Background(), "hola", "m1")
	if !first.Succeeded {
		t.Fatalf("first outcome = %+v", first)
	}

	second := c.Speak(context.Background(), "hola", "m1")
	if !second.Skipped {
		t.Fatalf("second outcome = %+v, want Skipped", second)
	}
	if remote.CallCount() != 1 {
		t.Errorf("CallCount = %d, duplicate reached the backend", remote.CallCount())
	}
}

func TestCoordinator_EmptyTextRejected(t *testing.T) {
	remote := &ttsmock.Remote{}
	c := newTestCoordinator(remote, &ttsmock.Local{}, &audiomock.Device{}, Config{})

	out := c.Speak(context.Background(), "   ", "m1")
	if out.Succeeded || out.Backend != BackendNone || out.ErrorMessage == "" {
		t.Errorf("outcome = %+v, want none-backend failure", out)
	}
	if remote.CallCount() != 0 {
		t.Error("empty text reached the backend")
	}
}

func TestCoordinator_MarkdownOnlyTextRejected(t *testing.T) {
	remote := &ttsmock.Remote{}
	c := newTestCoordinator(remote, &ttsmock.Local{}, &audiomock.Device{}, Config{})

	out := c.Speak(context.Background(), "```\nx := 1\n```", "m1")
	if out.Succeeded || remote.CallCount() != 0 {
		t.Errorf("outcome = %+v, calls = %d; code-only message reached the backend", out, remote.CallCount())
	}
}

func TestCoordinator_Replay(t *testing.T) {
	remote := &ttsmock.Remote{}
	device := &audiomock.Device{AutoFinish: true}
	c := newTestCoordinator(remote, &ttsmock.Local{}, device, Config{})

	if _, ok := c.Replay(context.Background()); ok {
		t.Fatal("Replay reported text before anything was spoken")
	}

	c.Speak(context.Background(), "hola mundo", "m1")

	out, ok := c.Replay(context.Background())
	if !ok || !out.Succeeded {
		t.Fatalf("Replay = (%+v, %v), want success", out, ok)
	}
	if remote.CallCount() != 2 {
		t.Errorf("CallCount = %d, want 2", remote.CallCount())
	}
}

func TestCoordinator_StopMidPlayback(t *testing.T) {
	remote := &ttsmock.Remote{}
	local := &ttsmock.Local{}
	device := &audiomock.Device{} // playback stays open until settled
	c := newTestCoordinator(remote, local, device, Config{})

	outCh := make(chan Outcome, 1)
	go func() { outCh <- c.Speak(context.Background(), "texto largo", "m1") }()

	waitUntil(t, func() bool { return device.PlayCount() == 1 })
	waitUntil(t, c.IsPlaying)

	c.Stop()

	out := <-outCh
	if !out.Stopped {
		t.Fatalf("outcome = %+v, want Stopped", out)
	}
	if out.Succeeded {
		t.Error("stopped playback reported success")
	}
	if !device.Playbacks[0].Stopped() {
		t.Error("device playback was not stopped")
	}
	if c.IsPlaying() {
		t.Error("still playing after Stop")
	}
}

// blockingRemote parks its first Synthesize call until release is
// closed, modelling a slow provider round-trip. Later calls return
// immediately.
type blockingRemote struct {
	entered chan struct{} // closed when the first call starts
	release chan struct{} // close to let the first call return
	calls   atomic.Int32
}

func newBlockingRemote() *blockingRemote {
	return &blockingRemote{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (r *blockingRemote) Synthesize(ctx context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	if r.calls.Add(1) == 1 {
		close(r.entered)
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &tts.SynthesisResult{Audio: []byte("mp3")}, nil
}

func TestCoordinator_StopDuringSynthesisSuppressesPlayback(t *testing.T) {
	remote := newBlockingRemote()
	device := &audiomock.Device{AutoFinish: true}
	c := NewCoordinator(remote, &ttsmock.Local{}, device, Config{
		VoiceID:   "es-ES-Elvira-Premium",
		VoiceWait: 10 * time.Millisecond,
	})

	outCh := make(chan Outcome, 1)
	go func() { outCh <- c.Speak(context.Background(), "hola", "m1") }()

	<-remote.entered
	c.Stop()
	close(remote.release)

	out := <-outCh
	if out.Succeeded || !out.Stopped {
		t.Fatalf("outcome = %+v, want Stopped", out)
	}
	if device.PlayCount() != 0 {
		t.Errorf("PlayCount = %d, late synthesis reached the device", device.PlayCount())
	}
	// The stopped request never attached, so its id was never marked
	// spoken and a retry must go through.
	if out := c.Speak(context.Background(), "hola", "m1"); !out.Succeeded {
		t.Errorf("retry outcome = %+v, stopped request consumed the message id", out)
	}
}

func TestCoordinator_PreemptDuringSynthesis(t *testing.T) {
	remote := newBlockingRemote()
	device := &audiomock.Device{} // playbacks stay open until settled
	c := NewCoordinator(remote, &ttsmock.Local{}, device, Config{
		VoiceID:   "es-ES-Elvira-Premium",
		VoiceWait: 10 * time.Millisecond,
	})

	firstCh := make(chan Outcome, 1)
	go func() { firstCh <- c.Speak(context.Background(), "primero", "m1") }()
	<-remote.entered

	secondCh := make(chan Outcome, 1)
	go func() { secondCh <- c.Speak(context.Background(), "segundo", "m2") }()
	waitUntil(t, func() bool { return device.PlayCount() == 1 })

	// The first request's synthesis now returns into a session that has
	// moved on. It must not start a second playback or disturb the live
	// one.
	close(remote.release)

	first := <-firstCh
	if first.Succeeded || !first.Stopped {
		t.Fatalf("preempted outcome = %+v, want Stopped", first)
	}
	if device.PlayCount() != 1 {
		t.Fatalf("PlayCount = %d, want 1; stale synthesis started a playback", device.PlayCount())
	}
	if device.Playbacks[0].Stopped() {
		t.Fatal("live playback was stopped by the preempted request")
	}

	device.Playbacks[0].Finish(nil)
	second := <-secondCh
	if !second.Succeeded || second.Backend != BackendRemote {
		t.Fatalf("second outcome = %+v, want remote success", second)
	}
}

func TestCoordinator_PitchRescaledForLocal(t *testing.T) {
	tests := []struct {
		remotePitch float64
		wantLocal   float64
	}{
		{0, 1.0},
		{10, 2.0},
		{-5, 0.5},
	}
	for _, tt := range tests {
		remote := &ttsmock.Remote{Err: &tts.RemoteError{
			Msg: "quota exhausted", StatusCode: 429, FallbackAdvisable: true,
		}}
		local := &ttsmock.Local{VoiceList: spanishVoices, AutoFinish: true}
		c := newTestCoordinator(remote, local, &audiomock.Device{}, Config{
			FallbackEnabled: true,
			Pitch:           tt.remotePitch,
		})

		c.Speak(context.Background(), "hola", "")

		if local.SpeakCount() != 1 {
			t.Fatalf("pitch %v: SpeakCount = %d", tt.remotePitch, local.SpeakCount())
		}
		if got := local.SpeakCalls[0].Pitch; got != tt.wantLocal {
			t.Errorf("pitch %v: utterance pitch = %v, want %v", tt.remotePitch, got, tt.wantLocal)
		}
		if got := remote.Calls[0].Pitch; got != tt.remotePitch {
			t.Errorf("pitch %v: remote pitch = %v, passthrough expected", tt.remotePitch, got)
		}
	}
}

func TestCoordinator_VoiceSelectionCachedUntilInvalidated(t *testing.T) {
	remote := &ttsmock.Remote{Err: &tts.RemoteError{
		Msg: "quota exhausted", StatusCode: 429, FallbackAdvisable: true,
	}}
	local := &ttsmock.Local{VoiceList: spanishVoices, AutoFinish: true}
	c := newTestCoordinator(remote, local, &audiomock.Device{}, Config{FallbackEnabled: true})

	out := c.Speak(context.Background(), "primera", "m1")
	if out.VoiceUsed != "Mónica" {
		t.Fatalf("VoiceUsed = %q, want Mónica", out.VoiceUsed)
	}

	// The daemon's list changes under us; the cached selection holds.
	local.VoiceList = []voice.Voice{{Name: "Paulina", Locale: "es-MX", LocalService: true}}

	out = c.Speak(context.Background(), "segunda", "m2")
	if out.VoiceUsed != "Mónica" {
		t.Errorf("VoiceUsed = %q after cache hit, want Mónica", out.VoiceUsed)
	}

	c.InvalidateVoiceCache()
	out = c.Speak(context.Background(), "tercera", "m3")
	if out.VoiceUsed != "Paulina" {
		t.Errorf("VoiceUsed = %q after invalidation, want Paulina", out.VoiceUsed)
	}
}

func TestCoordinator_EmptyVoiceListNotCached(t *testing.T) {
	remote := &ttsmock.Remote{Err: &tts.RemoteError{
		Msg: "quota exhausted", StatusCode: 429, FallbackAdvisable: true,
	}}
	local := &ttsmock.Local{AutoFinish: true} // daemon still loading
	c := newTestCoordinator(remote, local, &audiomock.Device{}, Config{FallbackEnabled: true})

	out := c.Speak(context.Background(), "primera", "m1")
	if out.Succeeded {
		t.Fatalf("outcome = %+v, want failure with no voices", out)
	}

	// Voices arrive; the next fallback must re-score, not reuse the miss.
	local.VoiceList = spanishVoices

	out = c.Speak(context.Background(), "segunda", "m2")
	if !out.Succeeded || out.VoiceUsed != "Mónica" {
		t.Errorf("outcome = %+v, want local success with Mónica", out)
	}
}

func TestCoordinator_AudioDeviceFailureIsFinal(t *testing.T) {
	remote := &ttsmock.Remote{}
	local := &ttsmock.Local{VoiceList: spanishVoices, AutoFinish: true}
	device := &audiomock.Device{PlayErr: &audio.PlaybackError{Msg: "no output device"}}
	c := newTestCoordinator(remote, local, device, Config{FallbackEnabled: true})

	out := c.Speak(context.Background(), "hola", "m1")

	if out.Succeeded {
		t.Fatal("succeeded despite device failure")
	}
	if out.Backend != BackendRemote {
		t.Errorf("Backend = %v, want remote (synthesis worked)", out.Backend)
	}
	// The device is shared by both paths, so no local retry.
	if out.FallbackAttempted || local.SpeakCount() != 0 {
		t.Error("local fallback ran after a device failure")
	}
}
