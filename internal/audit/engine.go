// Package audit inspects the locally installed voice inventory and
// reports how well it covers Spanish speech output. The audit is a
// diagnostic: it classifies every voice the daemon exposes instead of
// selecting one, and it never fails hard. A broken or still-loading
// daemon yields an empty summary.
package audit

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/nvaldezz/sonara/internal/observe"
	"github.com/nvaldezz/sonara/pkg/provider/tts"
	"github.com/nvaldezz/sonara/pkg/voice"
)

// defaultWait bounds how long an audit run waits for the daemon's
// asynchronous voice load. Longer than the playback path's wait because
// an audit is interactive and exhaustive.
const defaultWait = 3 * time.Second

// agentName identifies the audit producer in exported summaries.
const agentName = "sonara-voice-audit"

// Report is the classification of one Spanish voice.
type Report struct {
	Name       string           `json:"name"`
	Locale     string           `json:"locale"`
	Match      bool             `json:"match"`
	Confidence voice.Confidence `json:"confidence"`
	Reasoning  string           `json:"reasoning"`
}

// Summary is the result of one audit run, shaped for JSON export.
// Matches lists only the voices classified as female Spanish;
// SpanishVoicesDetail keeps the classification of every Spanish voice
// so a miss can be diagnosed from the reasoning strings.
type Summary struct {
	TotalVoices         int      `json:"total_voices"`
	SpanishVoices       int      `json:"spanish_voices"`
	FemaleSpanishVoices int      `json:"female_spanish_voices"`
	Matches             []Report `json:"matches"`
	SpanishVoicesDetail []Report `json:"spanish_voices_detail"`
	Platform            string   `json:"platform"`
	Agent               string   `json:"agent"`
	GeneratedAt         string   `json:"generated_at"`
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithWait overrides how long Run waits for the voice list.
func WithWait(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.wait = d
		}
	}
}

// WithClock overrides the timestamp source. For tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs voice inventory audits against the local daemon.
type Engine struct {
	local tts.Local
	wait  time.Duration
	now   func() time.Time
}

// NewEngine creates an audit engine over the local backend.
func NewEngine(local tts.Local, opts ...Option) *Engine {
	e := &Engine{
		local: local,
		wait:  defaultWait,
		now:   time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run enumerates and classifies the daemon's voices. Run never returns
// an error: when the voice list cannot be obtained the summary carries
// zero counts and no matches, with the envelope fields still populated.
func (e *Engine) Run(ctx context.Context) Summary {
	ctx, span := observe.StartSpan(ctx, "audit.Run")
	defer span.End()
	log := observe.Logger(ctx)

	sum := Summary{
		Matches:             []Report{},
		SpanishVoicesDetail: []Report{},
		Platform:            runtime.GOOS,
		Agent:               agentName,
		GeneratedAt:         e.now().UTC().Format(time.RFC3339),
	}

	voices, err := e.local.WaitVoices(ctx, e.wait)
	if err != nil {
		log.Warn("voice audit degraded, could not enumerate voices", "err", err)
		return sum
	}

	sum.TotalVoices = len(voices)
	for _, v := range voices {
		if !isSpanish(v.Locale) {
			continue
		}
		sum.SpanishVoices++
		cl := voice.Classify(v, "es")
		r := Report{
			Name:       v.Name,
			Locale:     v.Locale,
			Match:      cl.Match,
			Confidence: cl.Confidence,
			Reasoning:  cl.Reasoning,
		}
		sum.SpanishVoicesDetail = append(sum.SpanishVoicesDetail, r)
		if cl.Match {
			sum.FemaleSpanishVoices++
			sum.Matches = append(sum.Matches, r)
		}
	}

	log.Info("voice audit complete",
		"total", sum.TotalVoices,
		"spanish", sum.SpanishVoices,
		"female_spanish", sum.FemaleSpanishVoices)
	return sum
}

// isSpanish reports whether locale belongs to the Spanish language
// family ("es", "es-ES", "es_MX", ...).
func isSpanish(locale string) bool {
	l := strings.ToLower(locale)
	return l == "es" || strings.HasPrefix(l, "es-") || strings.HasPrefix(l, "es_")
}
