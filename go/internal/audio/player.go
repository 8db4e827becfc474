package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrNoCommand = errors.New("audio command is empty")

// Player plays one sound at a time by running an external command with the
// sound path appended, for example "mpg123 -q" or "afplay".
type Player struct {
	name string
	args []string

	mu      sync.Mutex
	cancel  context.CancelFunc
	current string

	finished chan struct{}
}

// NewPlayer parses command into a program and its leading arguments.
func NewPlayer(command string) (*Player, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, ErrNoCommand
	}
	return &Player{
		name:     fields[0],
		args:     fields[1:],
		finished: make(chan struct{}, 1),
	}, nil
}

// Play starts path and returns true, or returns false without doing anything
// when a sound is already playing.
func (p *Player) Play(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	args := append(append([]string(nil), p.args...), path)
	cmd := exec.CommandContext(ctx, p.name, args...)
	if err := cmd.Start(); err != nil {
		cancel()
		log.Error().Err(err).Str("sound", path).Msg("failed to start audio command")
		return false
	}

	p.cancel = cancel
	p.current = path
	log.Debug().Str("sound", path).Int("pid", cmd.Process.Pid).Msg("sound started")

	go p.wait(cmd, cancel, path)
	return true
}

func (p *Player) wait(cmd *exec.Cmd, cancel context.CancelFunc, path string) {
	err := cmd.Wait()
	cancel()

	p.mu.Lock()
	p.cancel = nil
	p.current = ""
	p.mu.Unlock()

	if err != nil && !isKilled(err) {
		log.Warn().Err(err).Str("sound", path).Msg("audio command failed")
	}

	select {
	case p.finished <- struct{}{}:
	default:
	}
}

// Stop kills the playing sound, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		log.Debug().Str("sound", p.current).Msg("stopping sound")
		p.cancel()
	}
}

// IsPlaying reports whether a sound is currently playing.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Current returns the path of the playing sound.
func (p *Player) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Finished signals each time a sound ends, whether it completed or was
// stopped. Signals are coalesced when nobody is reading.
func (p *Player) Finished() <-chan struct{} {
	return p.finished
}

func isKilled(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	return !exitErr.Exited()
}

func (p *Player) String() string {
	return fmt.Sprintf("audio.Player(%s)", strings.Join(append([]string{p.name}, p.args...), " "))
}
