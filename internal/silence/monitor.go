// Package silence decides when a spoken attempt is finished.
package silence

import (
	"time"

	"github.com/verte-zerg/cueline/internal/matcher"
)

const (
	// Interval is how often a listening attempt is checked.
	Interval = 250 * time.Millisecond
	// CoverageThreshold is the share of expected words after which the
	// short silence applies.
	CoverageThreshold = 0.7
	// DefaultGrace is the silence tolerated mid-line.
	DefaultGrace = 5 * time.Second
	// DefaultNoSpeech is how long an attempt may stay silent from the start.
	DefaultNoSpeech = 12 * time.Second
	// DefaultShortSilence is used when no silence is configured.
	DefaultShortSilence = 1200 * time.Millisecond

	minShortSilence = 500 * time.Millisecond
	maxShortSilence = 3 * time.Second
)

// Decision is the outcome of one check.
type Decision int

const (
	Wait Decision = iota
	Finish
	NoSpeech
)

func (d Decision) String() string {
	switch d {
	case Wait:
		return "wait"
	case Finish:
		return "finish"
	case NoSpeech:
		return "no-speech"
	default:
		return "unknown"
	}
}

// Config holds the silence thresholds.
type Config struct {
	ShortSilence time.Duration
	Grace        time.Duration
	NoSpeech     time.Duration
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		ShortSilence: DefaultShortSilence,
		Grace:        DefaultGrace,
		NoSpeech:     DefaultNoSpeech,
	}
}

// WithShortSilence returns cfg with the configured short silence, clamped to
// a usable range. Zero keeps the current value.
func (c Config) WithShortSilence(d time.Duration) Config {
	if d <= 0 {
		return c
	}
	if d < minShortSilence {
		d = minShortSilence
	}
	if d > maxShortSilence {
		d = maxShortSilence
	}
	c.ShortSilence = d
	return c
}

// Threshold returns the silence after which an attempt with the given
// coverage counts as finished.
func (c Config) Threshold(coverage float64) time.Duration {
	if coverage >= CoverageThreshold {
		return c.ShortSilence
	}
	return c.Grace
}

// Monitor tracks one listening attempt. It holds no timers; the owner calls
// Check on its own schedule.
type Monitor struct {
	cfg           Config
	expectedWords int

	start       time.Time
	lastSpeech  time.Time
	transcript  string
	spokenWords int
}

// NewMonitor starts watching an attempt at expected.
func NewMonitor(cfg Config, expected string, now time.Time) *Monitor {
	return &Monitor{
		cfg:           cfg,
		expectedWords: matcher.WordCount(expected),
		start:         now,
	}
}

// Observe records the transcript heard so far. Any change counts as speech.
func (m *Monitor) Observe(transcript string, now time.Time) {
	if transcript == m.transcript {
		return
	}
	m.transcript = transcript
	m.spokenWords = matcher.SpokenWordCount(transcript)
	if m.spokenWords > 0 {
		m.lastSpeech = now
	}
}

// Heard reports whether any speech was detected.
func (m *Monitor) Heard() bool {
	return !m.lastSpeech.IsZero()
}

// Coverage is spoken words over expected words, capped at 1.
func (m *Monitor) Coverage() float64 {
	if m.expectedWords == 0 {
		return 1
	}
	c := float64(m.spokenWords) / float64(m.expectedWords)
	if c > 1 {
		return 1
	}
	return c
}

// Threshold returns the silence currently required to finish.
func (m *Monitor) Threshold() time.Duration {
	return m.cfg.Threshold(m.Coverage())
}

// Check evaluates the attempt at now.
func (m *Monitor) Check(now time.Time) Decision {
	if !m.Heard() {
		if now.Sub(m.start) >= m.cfg.NoSpeech {
			return NoSpeech
		}
		return Wait
	}
	if now.Sub(m.lastSpeech) >= m.Threshold() {
		return Finish
	}
	return Wait
}

// Rearm restarts the no-speech window, used after a nudge.
func (m *Monitor) Rearm(now time.Time) {
	m.start = now
}
