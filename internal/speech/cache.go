package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/cueline/internal/audio"
	"github.com/verte-zerg/cueline/internal/matcher"
	"github.com/verte-zerg/cueline/internal/model"
	"github.com/verte-zerg/cueline/internal/session"
)

// DefaultPrefetch bounds concurrent synthesis requests during prefetch.
const DefaultPrefetch = 4

// Cache keeps synthesized clips on disk keyed by a hash of voice, model and
// text.
type Cache struct {
	next   session.Synthesizer
	dir    string
	model  string
	logger *slog.Logger
}

// NewCache wraps next with a disk cache in dir. model is part of the key so
// changing the synthesis model invalidates old clips.
func NewCache(next session.Synthesizer, dir, model string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{next: next, dir: dir, model: model, logger: logger}
}

// Key returns the cache file name for a request.
func (c *Cache) Key(text, voice string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + voice + "\x00" + text))
	return hex.EncodeToString(sum[:]) + ".pcm"
}

// Synthesize returns the cached clip or synthesizes and stores it.
func (c *Cache) Synthesize(ctx context.Context, text, voice string) (audio.Clip, error) {
	path := filepath.Join(c.dir, c.Key(text, voice))
	pcm, err := os.ReadFile(path)
	if err == nil {
		return audio.NewClip(pcm, audio.SampleRate), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("tts cache read", "path", path, "err", err)
	}

	clip, err := c.next.Synthesize(ctx, text, voice)
	if err != nil {
		return audio.Clip{}, err
	}
	if err := c.store(path, clip.PCM); err != nil {
		c.logger.Warn("tts cache write", "path", path, "err", err)
	}
	return clip, nil
}

func (c *Cache) store(path string, pcm []byte) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, "clip-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(pcm); err != nil {
		// Best-effort cleanup.
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Request is one line to synthesize ahead of time.
type Request struct {
	Text  string
	Voice string
}

// Requests lists what a rehearsal of scene will synthesize: every dialogue
// line (user lines give the reference timing) and, when speakDirections is
// set, the stage directions in the narrator's voice.
func Requests(scene model.Scene, narrator string, speakDirections bool) []Request {
	var out []Request
	seen := map[Request]struct{}{}
	for _, l := range scene.Lines {
		voice := scene.VoiceFor(l.CharacterName)
		if voice == "" {
			voice = narrator
		}
		if l.IsDirection() {
			if !speakDirections {
				continue
			}
			voice = narrator
		}
		r := Request{Text: matcher.StripParentheticals(l.Content), Voice: voice}
		if r.Text == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Prefetch synthesizes reqs with at most limit requests in flight. A failed
// request does not stop the others; the errors are joined.
func (c *Cache) Prefetch(ctx context.Context, reqs []Request, limit int) error {
	if limit <= 0 {
		limit = DefaultPrefetch
	}
	var g errgroup.Group
	g.SetLimit(limit)
	errs := make([]error, len(reqs))
	for i, r := range reqs {
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return nil
			}
			if _, err := c.Synthesize(ctx, r.Text, r.Voice); err != nil {
				errs[i] = fmt.Errorf("prefetch %q: %w", r.Text, err)
			}
			return nil
		})
	}
	// Workers never return errors.
	_ = g.Wait()
	return errors.Join(errs...)
}

var _ session.Synthesizer = (*Cache)(nil)
