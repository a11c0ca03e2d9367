// Package speechd provides the local speech backend client. It talks to
// the host's speech synthesis daemon over a WebSocket: voices are
// enumerated asynchronously after connect, and each utterance is an
// independent job that the daemon acknowledges with started/ended/error
// notifications carrying the job id.
//
// Notifications for unknown job ids are dropped. This is what makes
// cancellation safe: once a job is cancelled and deregistered, a late
// "ended" or "error" event from the daemon cannot settle anything.
package speechd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/nvaldezz/sonara/pkg/provider/tts"
	"github.com/nvaldezz/sonara/pkg/voice"
)

// Pitch and rate multipliers accepted by the daemon.
const (
	minPitch = 0.5
	maxPitch = 2.0
	minRate  = 0.5
	maxRate  = 2.0
)

// Compile-time interface assertion.
var _ tts.Local = (*Client)(nil)

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithLocale sets the default locale hint sent with utterances that do
// not specify one. Defaults to "es-ES".
func WithLocale(locale string) Option {
	return func(c *Client) {
		c.locale = locale
	}
}

// Client implements tts.Local against a running speech daemon. It is
// safe for concurrent use.
type Client struct {
	conn   *websocket.Conn
	locale string

	mu          sync.Mutex
	voices      []voice.Voice
	jobs        map[string]*job
	closed      bool
	voicesReady chan struct{}
	readyOnce   sync.Once
}

// Connect dials the speech daemon at wsURL (e.g. "ws://127.0.0.1:7071")
// and requests the voice list. Voices may not be available until the
// daemon answers; use [Client.WaitVoices] to wait for the first
// population with a bounded timeout.
func Connect(ctx context.Context, wsURL string, opts ...Option) (*Client, error) {
	if wsURL == "" {
		return nil, errors.New("speechd: wsURL must not be empty")
	}
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("speechd: dial %s: %w", wsURL, err)
	}

	c := &Client{
		conn:        conn,
		locale:      "es-ES",
		jobs:        make(map[string]*job),
		voicesReady: make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}

	if err := c.write(ctx, clientMessage{Type: "list_voices"}); err != nil {
		conn.Close(websocket.StatusInternalError, "list_voices failed")
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

// ---- wire messages ----

// clientMessage is the JSON envelope sent to the daemon.
type clientMessage struct {
	Type   string  `json:"type"`
	JobID  string  `json:"job_id,omitempty"`
	Text   string  `json:"text,omitempty"`
	Voice  string  `json:"voice,omitempty"`
	Locale string  `json:"locale,omitempty"`
	Rate   float64 `json:"rate,omitempty"`
	Pitch  float64 `json:"pitch,omitempty"`
	Volume float64 `json:"volume,omitempty"`
}

// daemonMessage is the JSON envelope received from the daemon.
type daemonMessage struct {
	Type    string        `json:"type"`
	JobID   string        `json:"job_id,omitempty"`
	Message string        `json:"message,omitempty"`
	Voices  []daemonVoice `json:"voices,omitempty"`
}

// daemonVoice is one voice entry in a "voices" message.
type daemonVoice struct {
	Name         string `json:"name"`
	Locale       string `json:"locale"`
	LocalService bool   `json:"local_service"`
	Default      bool   `json:"default"`
}

// ---- tts.Local implementation ----

// Voices returns the current voice snapshot without waiting. The
// snapshot is empty until the daemon has answered the initial
// list_voices request.
func (c *Client) Voices(context.Context) ([]voice.Voice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("speechd: client is closed")
	}
	return append([]voice.Voice(nil), c.voices...), nil
}

// WaitVoices blocks until the daemon has delivered the voice list at
// least once, wait elapses, or ctx is cancelled, then returns the
// current snapshot. A timeout is not an error; the snapshot may simply
// be empty.
func (c *Client) WaitVoices(ctx context.Context, wait time.Duration) ([]voice.Voice, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-c.voicesReady:
	case <-timer.C:
		slog.Debug("speechd: voice list not populated within wait", "wait", wait)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c.Voices(ctx)
}

// Speak submits an utterance job to the daemon. The job id is taken
// from utt.JobID or generated. The returned job settles once, when the
// daemon reports ended or error, or when the job is cancelled.
func (c *Client) Speak(ctx context.Context, utt tts.Utterance) (tts.Job, error) {
	if utt.Text == "" {
		return nil, errors.New("speechd: utterance text must not be empty")
	}

	id := utt.JobID
	if id == "" {
		id = uuid.NewString()
	}
	locale := utt.Locale
	if locale == "" {
		locale = c.locale
	}

	j := &job{
		id:     id,
		done:   make(chan error, 1),
		client: c,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New("speechd: client is closed")
	}
	c.jobs[id] = j
	c.mu.Unlock()

	msg := clientMessage{
		Type:   "speak",
		JobID:  id,
		Text:   utt.Text,
		Voice:  utt.Voice,
		Locale: locale,
		Rate:   clamp(defaultOne(utt.Rate), minRate, maxRate),
		Pitch:  clamp(defaultOne(utt.Pitch), minPitch, maxPitch),
		Volume: defaultOne(utt.Volume),
	}
	if err := c.write(ctx, msg); err != nil {
		c.dropJob(id)
		return nil, err
	}
	return j, nil
}

// Close shuts the daemon connection down. All pending jobs settle with
// an error. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pending := make([]*job, 0, len(c.jobs))
	for _, j := range c.jobs {
		pending = append(pending, j)
	}
	c.jobs = map[string]*job{}
	c.mu.Unlock()

	for _, j := range pending {
		j.settle(errors.New("speechd: connection closed"))
	}
	return c.conn.Close(websocket.StatusNormalClosure, "client closed")
}

// ---- internals ----

func (c *Client) write(ctx context.Context, msg clientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("speechd: marshal %s: %w", msg.Type, err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("speechd: send %s: %w", msg.Type, err)
	}
	return nil
}

// readLoop consumes daemon messages until the connection dies.
func (c *Client) readLoop() {
	ctx := context.Background()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.Close()
			return
		}
		var msg daemonMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("speechd: dropping malformed daemon message", "err", err)
			continue
		}
		c.dispatch(msg)
	}
}

// dispatch routes one daemon message. Events for unknown job ids are
// stale (cancelled or superseded jobs) and are dropped.
func (c *Client) dispatch(msg daemonMessage) {
	switch msg.Type {
	case "voices":
		vs := make([]voice.Voice, 0, len(msg.Voices))
		for _, dv := range msg.Voices {
			vs = append(vs, voice.Voice{
				Name:         dv.Name,
				Locale:       dv.Locale,
				LocalService: dv.LocalService,
				Default:      dv.Default,
			})
		}
		c.mu.Lock()
		c.voices = vs
		c.mu.Unlock()
		c.readyOnce.Do(func() { close(c.voicesReady) })
		slog.Debug("speechd: voice list updated", "count", len(vs))

	case "started":
		slog.Debug("speechd: utterance started", "job_id", msg.JobID)

	case "ended":
		if j := c.takeJob(msg.JobID); j != nil {
			j.settle(nil)
		} else {
			slog.Debug("speechd: ignoring stale ended event", "job_id", msg.JobID)
		}

	case "error":
		if j := c.takeJob(msg.JobID); j != nil {
			j.settle(&tts.LocalError{Msg: msg.Message})
		} else {
			slog.Debug("speechd: ignoring stale error event", "job_id", msg.JobID)
		}

	default:
		slog.Debug("speechd: unknown daemon message type", "type", msg.Type)
	}
}

// takeJob removes and returns the job with the given id, or nil.
func (c *Client) takeJob(id string) *job {
	c.mu.Lock()
	defer c.mu.Unlock()
	j := c.jobs[id]
	delete(c.jobs, id)
	return j
}

// dropJob removes a job without settling it.
func (c *Client) dropJob(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.jobs, id)
}

// job is one in-flight utterance.
type job struct {
	id     string
	done   chan error
	once   sync.Once
	client *Client
}

var _ tts.Job = (*job)(nil)

func (j *job) ID() string { return j.id }

func (j *job) Done() <-chan error { return j.done }

// Cancel deregisters the job, asks the daemon to stop it, and settles
// the done channel with context.Canceled. A notification that arrives
// for this job afterwards is ignored by dispatch.
func (j *job) Cancel() {
	if removed := j.client.takeJob(j.id); removed == nil {
		// Already settled or cancelled.
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := j.client.write(ctx, clientMessage{Type: "cancel", JobID: j.id}); err != nil {
		slog.Warn("speechd: cancel message failed", "job_id", j.id, "err", err)
	}
	j.settle(context.Canceled)
}

// settle delivers the terminal result exactly once.
func (j *job) settle(err error) {
	j.once.Do(func() { j.done <- err })
}

// ---- helpers ----

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// defaultOne maps the zero value to the neutral multiplier 1.0.
func defaultOne(v float64) float64 {
	if v == 0 {
		return 1.0
	}
	return v
}
