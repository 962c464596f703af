package audio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
)

// ChunkDuration is the length of each captured chunk.
const ChunkDuration = 100 // ms

// DefaultCaptureCommand returns an ffmpeg invocation that writes mono
// PCM16LE from the default microphone to stdout.
func DefaultCaptureCommand() []string {
	input := []string{"-f", "pulse", "-i", "default"}
	if runtime.GOOS == "darwin" {
		// none:0 avoids opening a video device.
		input = []string{"-f", "avfoundation", "-i", "none:0"}
	}
	args := []string{"ffmpeg", "-hide_banner", "-loglevel", "error"}
	args = append(args, input...)
	return append(args, "-ac", "1", "-ar", strconv.Itoa(SampleRate), "-f", "s16le", "-")
}

// Capture runs an external recorder and delivers fixed-size PCM chunks.
type Capture struct {
	argv []string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCapture uses argv to record; an empty argv selects the default.
func NewCapture(argv []string) *Capture {
	if len(argv) == 0 {
		argv = DefaultCaptureCommand()
	}
	return &Capture{argv: argv}
}

// Start launches the recorder. onChunk runs on the reader goroutine.
// Starting a running capture is a no-op.
func (c *Capture) Start(ctx context.Context, onChunk func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start recorder: %w", err)
	}

	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	go func() {
		defer close(done)
		readChunks(stdout, onChunk)
		// Best-effort wait; the process is killed through ctx on Stop.
		_ = cmd.Wait()
	}()
	return nil
}

// Stop kills the recorder and waits for the reader to drain.
func (c *Capture) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a recorder is active.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func readChunks(r io.Reader, onChunk func([]byte)) {
	size := SampleRate * bytesPerSample * ChunkDuration / 1000
	reader := bufio.NewReaderSize(r, size*4)
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(reader, buf)
		if n > 0 {
			onChunk(buf[:n])
		}
		if err != nil {
			return
		}
	}
}
