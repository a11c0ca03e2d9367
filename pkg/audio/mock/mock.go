// Package mock provides an in-memory audio.Device for tests.
package mock

import (
	"context"
	"sync"

	"github.com/nvaldezz/sonara/pkg/audio"
)

// Device is a scriptable audio.Device. Zero value accepts every Play
// call; set AutoFinish to settle playbacks immediately.
type Device struct {
	mu sync.Mutex

	// PlayErr, when non-nil, fails Play immediately.
	PlayErr error

	// AutoFinish settles each playback as soon as it starts, with
	// FinishWith as the result.
	AutoFinish bool
	FinishWith error

	// Played records every payload handed to Play.
	Played [][]byte

	// Playbacks holds every handle created, in order.
	Playbacks []*Playback
}

var _ audio.Device = (*Device)(nil)

func (d *Device) Play(_ context.Context, data []byte) (audio.Playback, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.PlayErr != nil {
		return nil, d.PlayErr
	}
	d.Played = append(d.Played, append([]byte(nil), data...))
	p := &Playback{}
	d.Playbacks = append(d.Playbacks, p)
	if d.AutoFinish {
		p.Finish(d.FinishWith)
	}
	return p, nil
}

// PlayCount returns the number of Play calls accepted.
func (d *Device) PlayCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Played)
}

// Playback is a controllable audio.Playback.
type Playback struct {
	initOnce sync.Once
	done     chan error
	once     sync.Once
	mu       sync.Mutex
	stopped  bool
}

var _ audio.Playback = (*Playback)(nil)

// ch lazily initializes done so the zero-value Playback is usable.
func (p *Playback) ch() chan error {
	p.initOnce.Do(func() { p.done = make(chan error, 1) })
	return p.done
}

func (p *Playback) Done() <-chan error { return p.ch() }

func (p *Playback) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.Finish(context.Canceled)
}

// Stopped reports whether Stop was called.
func (p *Playback) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Finish settles the playback exactly once.
func (p *Playback) Finish(err error) {
	p.once.Do(func() { p.ch() <- err })
}
