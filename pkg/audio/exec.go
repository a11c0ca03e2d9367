package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
)

// Compile-time interface assertion.
var _ Device = (*ExecDevice)(nil)

// ExecDevice plays audio by piping the encoded bytes into an external
// player command (e.g. "mpg123 -q -" or "ffplay -nodisp -autoexit -").
// One player process is spawned per Play call.
type ExecDevice struct {
	command string
	args    []string
}

// NewExecDevice creates an ExecDevice that runs command with args for
// every playback. command must be non-empty.
func NewExecDevice(command string, args ...string) (*ExecDevice, error) {
	if command == "" {
		return nil, errors.New("audio: player command must not be empty")
	}
	return &ExecDevice{command: command, args: args}, nil
}

// Play spawns the player process, feeds it data on stdin, and returns a
// handle that settles when the process exits.
func (d *ExecDevice) Play(ctx context.Context, data []byte) (Playback, error) {
	if len(data) == 0 {
		return nil, &PlaybackError{Msg: "no audio data to play"}
	}

	playCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(playCtx, d.command, d.args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, &PlaybackError{Msg: fmt.Sprintf("open player stdin: %v", err)}
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &PlaybackError{Msg: fmt.Sprintf("start player %q: %v", d.command, err)}
	}

	p := &execPlayback{
		done:   make(chan error, 1),
		cancel: cancel,
	}

	go func() {
		writeErr := func() error {
			defer stdin.Close()
			_, err := stdin.Write(data)
			return err
		}()
		waitErr := cmd.Wait()

		switch {
		case playCtx.Err() != nil:
			// Stopped deliberately; a kill-induced exit error is expected.
			p.settle(context.Canceled)
		case waitErr != nil:
			p.settle(&PlaybackError{Msg: fmt.Sprintf("player %q: %v", d.command, waitErr)})
		case writeErr != nil:
			p.settle(&PlaybackError{Msg: fmt.Sprintf("write to player: %v", writeErr)})
		default:
			p.settle(nil)
		}
	}()

	return p, nil
}

// execPlayback is one running player process.
type execPlayback struct {
	done   chan error
	cancel context.CancelFunc
	once   sync.Once
}

func (p *execPlayback) Done() <-chan error { return p.done }

// Stop kills the player process. The Done channel settles with
// context.Canceled.
func (p *execPlayback) Stop() {
	p.cancel()
}

func (p *execPlayback) settle(err error) {
	p.once.Do(func() { p.done <- err })
}
