// Package pacing measures cue pickup and speaking duration against a
// reference timing.
package pacing

import (
	"math"
	"time"

	"github.com/verte-zerg/cueline/internal/model"
)

const (
	goodBand    = 10.0
	cautionBand = 25.0

	// FallbackPerWord estimates a reference duration when no reference audio
	// is available.
	FallbackPerWord = 400 * time.Millisecond
)

// Classify maps a delta percentage to an advisory band.
func Classify(deltaPercent float64) model.PacingBand {
	d := math.Abs(deltaPercent)
	switch {
	case d <= goodBand:
		return model.PacingGood
	case d <= cautionBand:
		return model.PacingCaution
	default:
		return model.PacingPoor
	}
}

// Target converts a reference clip duration into the expected speaking time
// at the given playback rate.
func Target(reference time.Duration, rate float64) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	return time.Duration(float64(reference) / rate)
}

// EstimateTarget is the reference duration used when no clip exists.
func EstimateTarget(words int) time.Duration {
	return time.Duration(words) * FallbackPerWord
}

// Tracker follows one user line from the end of the partner cue to the
// evaluation of the utterance.
type Tracker struct {
	partnerEnd  time.Time
	firstSpeech time.Time
	pickup      time.Duration
	hasPickup   bool
}

// Reset forgets all timestamps.
func (t *Tracker) Reset() {
	*t = Tracker{}
}

// PartnerFinished marks the end of the cue audio.
func (t *Tracker) PartnerFinished(now time.Time) {
	t.partnerEnd = now
	t.hasPickup = false
}

// BeginAttempt forgets the speech of a previous attempt but keeps the end of
// the cue.
func (t *Tracker) BeginAttempt() {
	t.firstSpeech = time.Time{}
	t.pickup = 0
	t.hasPickup = false
}

// SpeechDetected records the first speech of the utterance. Later calls are
// ignored until the next Reset.
func (t *Tracker) SpeechDetected(now time.Time) {
	if !t.firstSpeech.IsZero() {
		return
	}
	t.firstSpeech = now
	if !t.partnerEnd.IsZero() {
		t.pickup = now.Sub(t.partnerEnd)
		if t.pickup < 0 {
			t.pickup = 0
		}
		t.hasPickup = true
	}
}

// Started reports whether speech was detected.
func (t *Tracker) Started() bool {
	return !t.firstSpeech.IsZero()
}

// Complete builds the sample for an utterance evaluated at now. It returns
// false when no speech was detected or the target is unknown.
func (t *Tracker) Complete(now time.Time, target time.Duration) (model.PacingSample, bool) {
	if t.firstSpeech.IsZero() || target <= 0 {
		return model.PacingSample{}, false
	}
	user := now.Sub(t.firstSpeech)
	if user < 0 {
		user = 0
	}
	userMs := user.Milliseconds()
	targetMs := target.Milliseconds()
	if targetMs == 0 {
		return model.PacingSample{}, false
	}
	delta := float64(userMs-targetMs) / float64(targetMs) * 100
	return model.PacingSample{
		PickupMs:         t.pickup.Milliseconds(),
		HasPickup:        t.hasPickup,
		UserDurationMs:   userMs,
		TargetDurationMs: targetMs,
		DeltaPercent:     delta,
		Band:             Classify(delta),
	}, true
}
