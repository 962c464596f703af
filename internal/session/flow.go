package session

import (
	"context"
	"fmt"
	"time"

	"github.com/verte-zerg/cueline/internal/audio"
	"github.com/verte-zerg/cueline/internal/matcher"
	"github.com/verte-zerg/cueline/internal/model"
	"github.com/verte-zerg/cueline/internal/segment"
)

// halt ends the current cycle. Audio capture stops first, then the
// recognizer session is closed when teardown is set, then timers and
// playback are cancelled. Continuations of the ended cycle are dropped.
func (e *Engine) halt(teardown bool) {
	sc := e.sc
	if sc.listening {
		e.pauseCapture()
		sc.listening = false
	}
	if sc.recording {
		e.rec.StopRecording()
		sc.recording = false
	}
	if teardown && (sc.connected || sc.connecting) {
		e.rec.StopSession()
		sc.connected = false
		sc.connecting = false
		sc.reconnecting = false
	}
	sc.timers.cancelAll()
	if sc.cancelPlay != nil {
		sc.cancelPlay()
		sc.cancelPlay = nil
	}
	sc.afterPlay = nil
	sc.wantListen = false
	sc.level = 0
	sc.seq++
}

// resetLine clears everything derived from the current line.
func (sc *sessionContext) resetLine() {
	sc.resetAttempt()
	sc.expected = ""
	sc.wholeLine = false
	sc.results = nil
	sc.accuracy = 0
	sc.builder = nil
	sc.offer = nil
	sc.stored = nil
	sc.reference = 0
	sc.tracker.Reset()
}

// resetAttempt clears the state of one listening attempt.
func (sc *sessionContext) resetAttempt() {
	sc.heard.reset()
	sc.lock = matcher.NewState()
	sc.monitor = nil
	sc.nudged = false
}

func (e *Engine) currentLine() (model.Line, bool) {
	if e.sc.index < 0 || e.sc.index >= len(e.scene.Lines) {
		return model.Line{}, false
	}
	return e.scene.Lines[e.sc.index], true
}

// enterLine makes line i current and starts whatever the mode does with it.
func (e *Engine) enterLine(i int) {
	e.halt(false)
	sc := e.sc
	sc.resetLine()
	sc.lineEpoch++
	sc.prompt = PromptNone
	sc.err = nil
	if i < 0 {
		i = 0
	}
	sc.index = i
	line, ok := e.currentLine()
	if !ok {
		sc.index = len(e.scene.Lines)
		sc.running = false
		sc.status = model.StatusIdle
		sc.prompt = PromptDone
		e.logger.Info("scene complete", "correct", sc.stats.Correct, "wrong", sc.stats.Wrong)
		return
	}
	e.logger.Debug("enter line", "index", i, "line", line.ID, "mode", sc.mode.String())

	switch {
	case line.IsDirection():
		e.direction(line)
	case !line.IsUserLine:
		sc.status = model.StatusPartnerSpeaking
		e.speak(line.Content, e.voiceFor(line), e.cfg.Rate, func() {
			end := e.clock.Now()
			e.enterLine(sc.index + 1)
			e.sc.tracker.PartnerFinished(end)
		})
	default:
		e.userLine(line)
	}
}

func (e *Engine) direction(line model.Line) {
	sc := e.sc
	switch e.cfg.Directions {
	case model.DirectionsSkip:
		e.enterLine(sc.index + 1)
	case model.DirectionsShow:
		sc.status = model.StatusNarrating
		e.after(timerShow, showDuration(line.Content))
	case model.DirectionsSpeak:
		sc.status = model.StatusNarrating
		e.speak(line.Content, e.cfg.NarratorVoice, e.cfg.Rate, func() {
			e.enterLine(sc.index + 1)
		})
	}
}

func (e *Engine) userLine(line model.Line) {
	sc := e.sc
	switch sc.mode {
	case model.ModeListen:
		if e.cfg.PlayUserLines {
			sc.status = model.StatusPartnerSpeaking
			e.speak(line.Content, e.voiceFor(line), e.cfg.Rate, func() {
				e.enterLine(sc.index + 1)
			})
			return
		}
		sc.status = model.StatusNarrating
		e.after(timerShow, showDuration(line.Content))
	case model.ModePractice:
		e.loadReference(line)
		sc.expected = line.Content
		sc.wholeLine = true
		e.beginAttempt(e.cfg.Cue)
	case model.ModeRepeat:
		e.loadReference(line)
		sc.builder = segment.NewBuilder(segment.BuildSegments(line), e.cfg.RepeatFullLine)
		sc.status = model.StatusIdle
		e.loadProgress(line)
	}
}

func showDuration(text string) time.Duration {
	d := time.Duration(matcher.WordCount(text)) * showPerWord
	return max(d, minShow)
}

func (e *Engine) voiceFor(line model.Line) string {
	if v := e.scene.VoiceFor(line.CharacterName); v != "" {
		return v
	}
	return e.cfg.NarratorVoice
}

// after schedules a timer event for the current cycle.
func (e *Engine) after(kind timerKind, d time.Duration) {
	seq := e.sc.seq
	e.sc.timers.schedule(kind, d, func() {
		e.post(timerEvent{seq: seq, kind: kind})
	})
}

// speak synthesizes text and plays it. then runs once playback finished or
// failed, unless the cycle ended meanwhile.
func (e *Engine) speak(text, voice string, rate float64, then func()) {
	text = matcher.StripParentheticals(text)
	e.play(func(ctx context.Context) (audio.Clip, error) {
		if text == "" {
			return audio.Clip{}, nil
		}
		return e.synth.Synthesize(ctx, text, voice)
	}, rate, then)
}

func (e *Engine) playClip(clip audio.Clip, then func()) {
	e.play(func(context.Context) (audio.Clip, error) { return clip, nil }, 1, then)
}

func (e *Engine) play(source func(context.Context) (audio.Clip, error), rate float64, then func()) {
	sc := e.sc
	seq := sc.seq
	ctx, cancel := context.WithCancel(e.ctx)
	sc.cancelPlay = cancel
	sc.afterPlay = then
	player := e.player
	e.spawn(func() {
		defer cancel()
		clip, err := source(ctx)
		if err == nil {
			err = player.Play(ctx, clip, rate)
		}
		e.post(playbackDoneEvent{seq: seq, err: err})
	})
}

func (e *Engine) onPlaybackDone(ev playbackDoneEvent) {
	sc := e.sc
	if ev.seq != sc.seq {
		return
	}
	if ev.err != nil {
		// Playback never blocks the rehearsal.
		e.logger.Warn("playback failed", "err", fmt.Errorf("%w: %w", ErrPlayback, ev.err))
	}
	sc.cancelPlay = nil
	then := sc.afterPlay
	sc.afterPlay = nil
	if then != nil {
		then()
	}
}

// loadReference synthesizes the user's own line to learn its natural length.
func (e *Engine) loadReference(line model.Line) {
	epoch := e.sc.lineEpoch
	ctx := e.ctx
	text := matcher.StripParentheticals(line.Content)
	voice := e.voiceFor(line)
	e.spawn(func() {
		clip, err := e.synth.Synthesize(ctx, text, voice)
		e.post(referenceEvent{epoch: epoch, duration: clip.Duration, err: err})
	})
}

func (e *Engine) onReference(ev referenceEvent) {
	if ev.epoch != e.sc.lineEpoch {
		return
	}
	if ev.err != nil {
		e.logger.Debug("reference timing unavailable", "err", ev.err)
		return
	}
	e.sc.reference = ev.duration
}

func (e *Engine) loadProgress(line model.Line) {
	epoch := e.sc.lineEpoch
	ctx := e.ctx
	userID := e.cfg.UserID
	e.spawn(func() {
		p, err := e.store.GetBuildProgress(ctx, userID, line.ID)
		e.post(progressEvent{epoch: epoch, progress: p, err: err})
	})
}

// onProgress offers a resume when a checkpoint exists and otherwise starts
// building from the first segment.
func (e *Engine) onProgress(ev progressEvent) {
	sc := e.sc
	if ev.epoch != sc.lineEpoch || sc.builder == nil {
		return
	}
	if ev.err != nil {
		e.logger.Warn("load build progress", "err", ev.err)
	}
	if offer, ok := sc.builder.Offer(ev.progress); ok {
		sc.offer = &offer
		sc.stored = ev.progress
		sc.status = model.StatusIdle
		sc.prompt = PromptResume
		return
	}
	e.segmentCycle()
}

func (e *Engine) resumeBuild() {
	sc := e.sc
	if sc.offer == nil || sc.builder == nil || sc.stored == nil {
		return
	}
	sc.builder.ResumeFrom(*sc.stored)
	sc.offer = nil
	sc.stored = nil
	sc.prompt = PromptNone
	e.segmentCycle()
}

func (e *Engine) restartBuild() {
	sc := e.sc
	if sc.offer == nil || sc.builder == nil {
		return
	}
	line, _ := e.currentLine()
	sc.builder.Restart()
	sc.offer = nil
	sc.stored = nil
	sc.prompt = PromptNone
	userID := e.cfg.UserID
	e.persist("delete build progress", func(ctx context.Context) error {
		return e.store.DeleteBuildProgress(ctx, userID, line.ID)
	})
	e.segmentCycle()
}

// segmentCycle plays the accumulated segments and then listens for them.
func (e *Engine) segmentCycle() {
	e.halt(false)
	sc := e.sc
	b := sc.builder
	if b == nil || b.Complete() {
		return
	}
	line, _ := e.currentLine()
	sc.expected = b.Current()
	sc.wholeLine = b.InFullRepeat() || b.Index() == b.Total()-1
	sc.prompt = PromptNone
	sc.err = nil
	sc.status = model.StatusSegmentPlaying
	e.speak(sc.expected, e.voiceFor(line), e.cfg.Rate, func() {
		e.sc.tracker.PartnerFinished(e.clock.Now())
		e.beginAttempt(false)
	})
}

func (e *Engine) saveProgress() {
	sc := e.sc
	line, ok := e.currentLine()
	if !ok || sc.builder == nil {
		return
	}
	p := sc.builder.Progress()
	p.UpdatedAt = e.clock.Now()
	userID := e.cfg.UserID
	e.persist("save build progress", func(ctx context.Context) error {
		return e.store.UpsertBuildProgress(ctx, userID, line.ID, p)
	})
}

func (e *Engine) completeLine(line model.Line) {
	sc := e.sc
	sc.stats.Completed[line.ID] = struct{}{}
	userID := e.cfg.UserID
	scriptID := e.scene.ID
	e.persist("mark line completed", func(ctx context.Context) error {
		return e.store.MarkLineCompleted(ctx, userID, scriptID, line.ID)
	})
	if e.achievements != nil {
		ctx := e.ctx
		achievements := e.achievements
		e.spawn(func() { achievements.LineCompleted(ctx, userID, line.ID) })
	}
}

// persist runs a store write in the background. Failures are logged and
// never reach the rehearsal.
func (e *Engine) persist(op string, write func(context.Context) error) {
	ctx := e.ctx
	logger := e.logger
	e.spawn(func() {
		if err := write(ctx); err != nil {
			logger.Warn("persist failed", "op", op, "err", err)
		}
	})
}
