package session

import (
	"context"
	"testing"
	"time"

	"github.com/verte-zerg/cueline/internal/audio"
	"github.com/verte-zerg/cueline/internal/model"
)

type manualClock struct {
	now    time.Time
	timers []*manualTimer
	log    *[]string
}

type manualTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
	log     *[]string
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	*t.log = append(*t.log, "timer-stop")
	return true
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{at: c.now.Add(d), f: f, log: c.log}
	c.timers = append(c.timers, t)
	return t
}

// next returns the earliest live timer due at or before limit.
func (c *manualClock) next(limit time.Time) *manualTimer {
	var best *manualTimer
	for _, t := range c.timers {
		if t.stopped || t.fired || t.at.After(limit) {
			continue
		}
		if best == nil || t.at.Before(best.at) {
			best = t
		}
	}
	return best
}

type fakeRecognizer struct {
	log       *[]string
	cb        RecognitionCallbacks
	startErrs []error
	sessions  int
	listens   int
	listening bool
	recording bool
	prompt    string
}

func (r *fakeRecognizer) StartSession(_ context.Context, cb RecognitionCallbacks) error {
	r.sessions++
	*r.log = append(*r.log, "start-session")
	if len(r.startErrs) > 0 {
		err := r.startErrs[0]
		r.startErrs = r.startErrs[1:]
		if err != nil {
			return err
		}
	}
	r.cb = cb
	return nil
}

func (r *fakeRecognizer) StopSession() {
	*r.log = append(*r.log, "stop-session")
}

func (r *fakeRecognizer) StartListening() error {
	r.listens++
	r.listening = true
	*r.log = append(*r.log, "listen")
	return nil
}

func (r *fakeRecognizer) PauseListening() {
	r.listening = false
	*r.log = append(*r.log, "pause")
}

func (r *fakeRecognizer) StartRecording() { r.recording = true }

func (r *fakeRecognizer) StopRecording() []byte {
	r.recording = false
	return []byte{1, 2, 3, 4}
}

func (r *fakeRecognizer) UpdatePrompt(bias string) { r.prompt = bias }

type fakeSynth struct {
	texts []string
	err   error
}

func (s *fakeSynth) Synthesize(_ context.Context, text, _ string) (audio.Clip, error) {
	s.texts = append(s.texts, text)
	if s.err != nil {
		return audio.Clip{}, s.err
	}
	return audio.Clip{PCM: []byte{0, 0}, SampleRate: audio.SampleRate, Duration: 2 * time.Second}, nil
}

type fakePlayer struct {
	plays int
	err   error
}

func (p *fakePlayer) Play(context.Context, audio.Clip, float64) error {
	p.plays++
	return p.err
}

type fakeStore struct {
	progress  map[string]model.BuildProgress
	upserts   []model.BuildProgress
	deletes   []string
	completed []string
	attempts  []model.Attempt
}

func newFakeStore() *fakeStore {
	return &fakeStore{progress: map[string]model.BuildProgress{}}
}

func (s *fakeStore) GetBuildProgress(_ context.Context, _, lineID string) (*model.BuildProgress, error) {
	p, ok := s.progress[lineID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *fakeStore) UpsertBuildProgress(_ context.Context, _, lineID string, p model.BuildProgress) error {
	s.progress[lineID] = p
	s.upserts = append(s.upserts, p)
	return nil
}

func (s *fakeStore) DeleteBuildProgress(_ context.Context, _, lineID string) error {
	delete(s.progress, lineID)
	s.deletes = append(s.deletes, lineID)
	return nil
}

func (s *fakeStore) MarkLineCompleted(_ context.Context, _, _, lineID string) error {
	s.completed = append(s.completed, lineID)
	return nil
}

func (s *fakeStore) RecordAttempt(_ context.Context, a model.Attempt) error {
	s.attempts = append(s.attempts, a)
	return nil
}

type fakeAchievements struct{ lines []string }

func (a *fakeAchievements) LineCompleted(_ context.Context, _, lineID string) {
	a.lines = append(a.lines, lineID)
}

type fakeRecordings struct{ saved [][]byte }

func (r *fakeRecordings) SaveRecording(_ context.Context, _ model.Attempt, pcm []byte) error {
	r.saved = append(r.saved, pcm)
	return nil
}

// harness runs an engine synchronously: spawned work runs inline and events
// are dispatched by drain.
type harness struct {
	t            *testing.T
	log          []string
	clock        *manualClock
	rec          *fakeRecognizer
	synth        *fakeSynth
	player       *fakePlayer
	store        *fakeStore
	achievements *fakeAchievements
	recordings   *fakeRecordings
	engine       *Engine
	snap         Snapshot
}

func newHarness(t *testing.T, scene model.Scene, cfg Config) *harness {
	t.Helper()
	h := &harness{
		t:            t,
		synth:        &fakeSynth{},
		player:       &fakePlayer{},
		store:        newFakeStore(),
		achievements: &fakeAchievements{},
		recordings:   &fakeRecordings{},
	}
	h.clock = &manualClock{now: time.Unix(1000, 0), log: &h.log}
	h.rec = &fakeRecognizer{log: &h.log}
	h.engine = New(scene, cfg, Options{
		Recognizer:   h.rec,
		Synthesizer:  h.synth,
		Player:       h.player,
		Store:        h.store,
		Achievements: h.achievements,
		Recordings:   h.recordings,
		Clock:        h.clock,
		OnUpdate:     func(s Snapshot) { h.snap = s },
	})
	h.engine.spawn = func(f func()) { f() }
	return h
}

func (h *harness) drain() {
	for {
		select {
		case ev := <-h.engine.events:
			h.engine.dispatch(ev)
		default:
			return
		}
	}
}

// advance moves the clock forward, firing due timers in order.
func (h *harness) advance(d time.Duration) {
	limit := h.clock.now.Add(d)
	for {
		t := h.clock.next(limit)
		if t == nil {
			break
		}
		h.clock.now = t.at
		t.fired = true
		t.f()
		h.drain()
	}
	h.clock.now = limit
	h.drain()
}

func (h *harness) do(cmd func()) {
	cmd()
	h.drain()
}

func (h *harness) say(text string) {
	h.t.Helper()
	if h.rec.cb.OnCommitted == nil {
		h.t.Fatalf("recognizer session not started")
	}
	h.rec.cb.OnCommitted(text)
	h.drain()
}

func (h *harness) expectStatus(want model.Status) {
	h.t.Helper()
	if h.snap.Status != want {
		h.t.Fatalf("expected status %v, got %v (prompt %q, line %d)", want, h.snap.Status, h.snap.Prompt, h.snap.LineIndex)
	}
}
