// Package session runs the live rehearsal of a scene: it plays partner
// lines, listens to the user's lines and scores them.
//
// All state is owned by the goroutine running Engine.Run. Playback,
// recognizer callbacks and timers run elsewhere and post events back; every
// play-then-listen cycle carries a sequence number and events from an older
// cycle are dropped.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/cueline/internal/matcher"
	"github.com/verte-zerg/cueline/internal/model"
	"github.com/verte-zerg/cueline/internal/pacing"
	"github.com/verte-zerg/cueline/internal/segment"
	"github.com/verte-zerg/cueline/internal/silence"
)

const (
	advanceDelay = 1200 * time.Millisecond
	retryDelay   = 1500 * time.Millisecond
	segmentDelay = 600 * time.Millisecond
	minShow      = 1500 * time.Millisecond
	showPerWord  = 300 * time.Millisecond

	// DefaultMaxFailures bounds consecutive misses before the engine stops
	// retrying on its own.
	DefaultMaxFailures = 3

	eventBuffer = 256
)

// Config controls one rehearsal.
type Config struct {
	UserID         string
	Mode           model.LearningMode
	Directions     model.DirectionsMode
	Strict         bool
	AutoAdvance    bool
	Failure        model.FailurePolicy
	MaxFailures    int
	Cue            bool
	PlayUserLines  bool
	RepeatFullLine int
	Silence        silence.Config
	Rate           float64
	NarratorVoice  string
	StartLine      int
	Record         bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		UserID:      "local",
		Mode:        model.ModePractice,
		Directions:  model.DirectionsShow,
		AutoAdvance: true,
		Failure:     model.FailureRepeatLine,
		MaxFailures: DefaultMaxFailures,
		Cue:         true,
		Silence:     silence.DefaultConfig(),
		Rate:        1,
	}
}

// Options wires the engine to its collaborators. Store, Achievements,
// Recordings, Clock, Logger and OnUpdate are optional.
type Options struct {
	Recognizer   Recognizer
	Synthesizer  Synthesizer
	Player       Player
	Store        ProgressStore
	Achievements Achievements
	Recordings   RecordingSink
	Clock        Clock
	Logger       *slog.Logger
	OnUpdate     func(Snapshot)
}

// Engine is the rehearsal state machine for one scene.
type Engine struct {
	cfg   Config
	scene model.Scene
	bias  string

	rec          Recognizer
	synth        Synthesizer
	player       Player
	store        ProgressStore
	achievements Achievements
	recordings   RecordingSink
	clock        Clock
	logger       *slog.Logger
	onUpdate     func(Snapshot)

	events    chan event
	closed    chan struct{}
	closeOnce sync.Once
	spawn     func(func())
	// listenSeq tags recognizer callbacks with the cycle that started
	// listening. It and capturing are the only fields touched outside the
	// owner goroutine.
	listenSeq atomic.Uint64
	// capturing is set while the microphone streams to the recognizer.
	capturing atomic.Bool

	ctx context.Context
	sc  *sessionContext
}

// sessionContext is the state of the current line. Only the owner goroutine
// touches it.
type sessionContext struct {
	seq       uint64
	lineEpoch uint64
	sessionID string

	running bool
	mode    model.LearningMode
	index   int
	status  model.Status
	prompt  Prompt
	err     error

	connected    bool
	connecting   bool
	reconnecting bool
	wantListen   bool
	listening    bool
	recording    bool
	cancelPlay   context.CancelFunc
	afterPlay    func()

	expected       string
	wholeLine      bool
	heard          transcript
	lock           matcher.LockedWordState
	results        []model.WordResult
	accuracy       float64
	monitor        *silence.Monitor
	nudged         bool
	attemptStarted time.Time
	level          float64

	builder *segment.Builder
	offer   *segment.ResumeOffer
	stored  *model.BuildProgress

	failLineID string
	failures   int

	tracker    pacing.Tracker
	reference  time.Duration
	lastPacing *model.PacingSample

	stats  model.PracticeStats
	timers timerSet
}

// New returns an engine for scene. Call Run to start processing.
func New(scene model.Scene, cfg Config, opts Options) *Engine {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Silence == (silence.Config{}) {
		cfg.Silence = silence.DefaultConfig()
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	store := opts.Store
	if store == nil {
		store = nopStore{}
	}
	onUpdate := opts.OnUpdate
	if onUpdate == nil {
		onUpdate = func(Snapshot) {}
	}

	start := cfg.StartLine
	if start < 0 || start >= len(scene.Lines) {
		start = 0
	}

	return &Engine{
		cfg:          cfg,
		scene:        scene,
		bias:         matcher.BiasText(scene.BiasTokens),
		rec:          opts.Recognizer,
		synth:        opts.Synthesizer,
		player:       opts.Player,
		store:        store,
		achievements: opts.Achievements,
		recordings:   opts.Recordings,
		clock:        clock,
		logger:       logger,
		onUpdate:     onUpdate,
		events:       make(chan event, eventBuffer),
		closed:       make(chan struct{}),
		spawn:        func(f func()) { go f() },
		ctx:          context.Background(),
		sc: &sessionContext{
			sessionID: uuid.NewString(),
			mode:      cfg.Mode,
			index:     start,
			prompt:    PromptStart,
			stats:     model.NewPracticeStats(),
			timers:    newTimerSet(clock),
		},
	}
}

// Run processes events until ctx is cancelled or Quit is called. The
// recognizer session is torn down on return.
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	defer e.closeOnce.Do(func() { close(e.closed) })
	e.publish()
	for {
		select {
		case <-ctx.Done():
			e.halt(true)
			return nil
		case ev := <-e.events:
			if e.dispatch(ev) {
				return nil
			}
		}
	}
}

// dispatch handles one event and publishes the result. It reports whether
// the engine should stop.
func (e *Engine) dispatch(ev event) bool {
	quit := e.handle(ev)
	e.publish()
	return quit
}

func (e *Engine) post(ev event) {
	select {
	case e.events <- ev:
	case <-e.closed:
	}
}

// Start begins the rehearsal, or answers the prompt currently shown.
func (e *Engine) Start() { e.post(commandEvent{cmd: cmdStart}) }

// Skip pauses the microphone at once and moves to the next line.
func (e *Engine) Skip() {
	e.pauseCapture()
	e.post(commandEvent{cmd: cmdSkip})
}

// Retry restarts the current line.
func (e *Engine) Retry() { e.post(commandEvent{cmd: cmdRetry}) }

// Next moves to the next line.
func (e *Engine) Next() {
	e.pauseCapture()
	e.post(commandEvent{cmd: cmdNext})
}

func (e *Engine) pauseCapture() {
	if e.capturing.Swap(false) {
		e.rec.PauseListening()
	}
}

// Previous moves to the previous line.
func (e *Engine) Previous() { e.post(commandEvent{cmd: cmdPrevious}) }

// Resume accepts a checkpoint offer.
func (e *Engine) Resume() { e.post(commandEvent{cmd: cmdResume}) }

// RestartBuild declines a checkpoint offer and clears stored progress.
func (e *Engine) RestartBuild() { e.post(commandEvent{cmd: cmdRestartBuild}) }

// Continue answers the "still there?" prompt.
func (e *Engine) Continue() { e.post(commandEvent{cmd: cmdContinue}) }

// CycleMode switches to the next learning mode.
func (e *Engine) CycleMode() { e.post(commandEvent{cmd: cmdCycleMode}) }

// SetMode switches to mode and re-enters the current line.
func (e *Engine) SetMode(mode model.LearningMode) { e.post(setModeEvent{mode: mode}) }

// Stop halts playback and listening and closes the recognizer session.
func (e *Engine) Stop() { e.post(commandEvent{cmd: cmdStop}) }

// Quit stops the engine and makes Run return.
func (e *Engine) Quit() { e.post(commandEvent{cmd: cmdQuit}) }

func (e *Engine) publish() {
	e.onUpdate(e.snapshot())
}

func (e *Engine) snapshot() Snapshot {
	sc := e.sc
	s := Snapshot{
		SceneTitle:   e.scene.Title,
		Mode:         sc.mode,
		Directions:   e.cfg.Directions,
		Status:       sc.status,
		Prompt:       sc.prompt,
		Running:      sc.running,
		LineIndex:    sc.index,
		TotalLines:   len(e.scene.Lines),
		Expected:     sc.expected,
		Transcript:   sc.heard.text(),
		MatchedWords: sc.lock.LockedCount,
		HasError:     sc.lock.HasError,
		Results:      append([]model.WordResult(nil), sc.results...),
		Accuracy:     sc.accuracy,
		Level:        sc.level,
		Correct:      sc.stats.Correct,
		Wrong:        sc.stats.Wrong,
		Completed:    len(sc.stats.Completed),
		Err:          sc.err,
	}
	if sc.index < len(e.scene.Lines) {
		s.Line = e.scene.Lines[sc.index]
	}
	if b := sc.builder; b != nil {
		s.Segments = b.Segments()
		s.SegmentIndex = b.Index()
		s.RepeatsLeft = b.RepeatsLeft()
		p := b.Progress()
		s.Build = &p
	}
	if sc.offer != nil {
		offer := *sc.offer
		s.Offer = &offer
	}
	if sc.lastPacing != nil {
		p := *sc.lastPacing
		s.Pacing = &p
	}
	return s
}
