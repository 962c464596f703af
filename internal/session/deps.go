package session

import (
	"context"
	"time"

	"github.com/verte-zerg/cueline/internal/audio"
	"github.com/verte-zerg/cueline/internal/model"
)

// RecognitionCallbacks receive recognizer output. They may be called from any
// goroutine.
type RecognitionCallbacks struct {
	OnPartial        func(text string)
	OnCommitted      func(text string)
	OnAudioLevel     func(level float64)
	OnSessionStarted func()
	OnDisconnect     func(err error)
	OnError          func(err error)
}

// Recognizer is a streaming speech-to-text connection. The session stays
// open between utterances; only listening is paused.
type Recognizer interface {
	StartSession(ctx context.Context, cb RecognitionCallbacks) error
	StopSession()
	StartListening() error
	PauseListening()
	StartRecording()
	StopRecording() []byte
	UpdatePrompt(bias string)
}

// Synthesizer turns text into audio with the given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (audio.Clip, error)
}

// Player plays a clip and returns when it finished.
type Player interface {
	Play(ctx context.Context, clip audio.Clip, rate float64) error
}

// ProgressStore persists rehearsal progress.
type ProgressStore interface {
	GetBuildProgress(ctx context.Context, userID, lineID string) (*model.BuildProgress, error)
	UpsertBuildProgress(ctx context.Context, userID, lineID string, p model.BuildProgress) error
	DeleteBuildProgress(ctx context.Context, userID, lineID string) error
	MarkLineCompleted(ctx context.Context, userID, scriptID, lineID string) error
	RecordAttempt(ctx context.Context, a model.Attempt) error
}

// Achievements is told about completed lines. Its result is not consumed.
type Achievements interface {
	LineCompleted(ctx context.Context, userID, lineID string)
}

// RecordingSink receives the audio of one user attempt.
type RecordingSink interface {
	SaveRecording(ctx context.Context, attempt model.Attempt, pcm []byte) error
}

// Clock provides time and timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// nopStore is used when no store is configured.
type nopStore struct{}

func (nopStore) GetBuildProgress(context.Context, string, string) (*model.BuildProgress, error) {
	return nil, nil
}

func (nopStore) UpsertBuildProgress(context.Context, string, string, model.BuildProgress) error {
	return nil
}

func (nopStore) DeleteBuildProgress(context.Context, string, string) error { return nil }

func (nopStore) MarkLineCompleted(context.Context, string, string, string) error { return nil }

func (nopStore) RecordAttempt(context.Context, model.Attempt) error { return nil }
