package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	minTempo = 0.5
	maxTempo = 2.0
	// playbackSlack is added to the clip length before playback is abandoned.
	playbackSlack = 3 * time.Second
)

// ErrPlaybackTimeout is returned when the player outlives the clip.
var ErrPlaybackTimeout = errors.New("playback timed out")

// Player plays clips through ffplay.
type Player struct {
	path   string
	volume int
}

// NewPlayer returns a player using the ffplay binary at path.
func NewPlayer(path string, volume int) *Player {
	if strings.TrimSpace(path) == "" {
		path = "ffplay"
	}
	if volume <= 0 || volume > 100 {
		volume = 80
	}
	return &Player{path: path, volume: volume}
}

// Play blocks until the clip finished, ctx is cancelled, or the safety
// timeout derived from the clip length expires.
func (p *Player) Play(ctx context.Context, clip Clip, rate float64) error {
	if clip.Empty() {
		return nil
	}
	tempo := clampTempo(rate)
	limit := time.Duration(float64(clip.Duration)/tempo) + playbackSlack
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-nodisp",
		"-autoexit",
		"-volume", strconv.Itoa(p.volume),
		"-f", "s16le",
		"-ch_layout", "mono",
		"-ar", strconv.Itoa(clip.SampleRate),
	}
	if tempo != 1 {
		args = append(args, "-af", fmt.Sprintf("atempo=%.2f", tempo))
	}
	args = append(args, "-i", "-")

	cmd := exec.CommandContext(ctx, p.path, args...)
	if runtime.GOOS == "darwin" && os.Getenv("SDL_AUDIODRIVER") == "" {
		cmd.Env = append(os.Environ(), "SDL_AUDIODRIVER=coreaudio")
	}
	cmd.Stdin = bytes.NewReader(clip.PCM)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case err == nil:
		return nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrPlaybackTimeout
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("ffplay: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
}

func clampTempo(rate float64) float64 {
	if rate <= 0 {
		return 1
	}
	if rate < minTempo {
		return minTempo
	}
	if rate > maxTempo {
		return maxTempo
	}
	return rate
}
