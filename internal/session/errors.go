package session

import "errors"

var (
	// ErrConnectionLost means the recognizer dropped and the reconnect failed.
	ErrConnectionLost = errors.New("speech recognition connection lost")
	// ErrNoSpeech means nothing was heard before the silence ceiling.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrMismatch means the utterance did not match the expected text.
	ErrMismatch = errors.New("utterance did not match")
	// ErrPlayback wraps synthesis or playback failures. They never stop the
	// rehearsal.
	ErrPlayback = errors.New("playback failed")
)
