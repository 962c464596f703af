package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/cueline/internal/audio"
	"github.com/verte-zerg/cueline/internal/matcher"
	"github.com/verte-zerg/cueline/internal/model"
	"github.com/verte-zerg/cueline/internal/pacing"
	"github.com/verte-zerg/cueline/internal/silence"
)

// beginAttempt optionally plays the cue and then listens for sc.expected.
func (e *Engine) beginAttempt(withCue bool) {
	sc := e.sc
	sc.status = model.StatusConnecting
	sc.resetAttempt()
	sc.results = nil
	if withCue {
		e.playClip(audio.CueTone(), e.listen)
		return
	}
	e.listen()
}

// listen opens the microphone, connecting first when the recognizer session
// is not up.
func (e *Engine) listen() {
	sc := e.sc
	sc.status = model.StatusConnecting
	if !sc.connected {
		sc.wantListen = true
		if !sc.connecting {
			e.connect(false)
		}
		return
	}
	sc.resetAttempt()
	e.listenSeq.Store(sc.seq)
	if err := e.rec.StartListening(); err != nil {
		e.logger.Warn("start listening", "err", err)
		e.halt(false)
		sc.status = model.StatusIdle
		sc.prompt = PromptRetry
		sc.err = fmt.Errorf("start listening: %w", err)
		return
	}
	sc.listening = true
	e.capturing.Store(true)
	if e.cfg.Record && e.recordings != nil {
		e.rec.StartRecording()
		sc.recording = true
	}
	now := e.clock.Now()
	sc.status = model.StatusListening
	sc.monitor = silence.NewMonitor(e.cfg.Silence, sc.expected, now)
	sc.attemptStarted = now
	sc.tracker.BeginAttempt()
	e.after(timerTick, silence.Interval)
}

func (e *Engine) connect(reconnect bool) {
	sc := e.sc
	sc.connecting = true
	ctx := e.ctx
	rec := e.rec
	cb := e.callbacks()
	seq := sc.seq
	e.spawn(func() {
		err := rec.StartSession(ctx, cb)
		e.post(connectedEvent{seq: seq, err: err, reconnect: reconnect})
	})
}

func (e *Engine) onConnected(ev connectedEvent) {
	sc := e.sc
	if !sc.connecting {
		// Torn down while connecting.
		if ev.err == nil {
			e.rec.StopSession()
		}
		return
	}
	sc.connecting = false
	if ev.seq != sc.seq {
		e.settleStaleConnect(ev)
		return
	}
	if ev.err != nil {
		if ev.reconnect {
			e.connectionLost(ev.err)
			return
		}
		e.logger.Warn("recognizer connect failed", "err", ev.err)
		e.halt(false)
		sc.status = model.StatusIdle
		sc.prompt = PromptRetry
		sc.err = fmt.Errorf("connect to speech recognition: %w", ev.err)
		return
	}
	sc.connected = true
	sc.reconnecting = false
	e.rec.UpdatePrompt(e.bias)
	if sc.wantListen {
		sc.wantListen = false
		e.listen()
	}
}

// settleStaleConnect handles a connection attempt that outlived the cycle
// that started it. A failure is only logged; the current cycle connects again
// if it is waiting to listen.
func (e *Engine) settleStaleConnect(ev connectedEvent) {
	sc := e.sc
	sc.reconnecting = false
	if ev.err != nil {
		e.logger.Warn("recognizer connect failed after line change", "err", ev.err, "reconnect", ev.reconnect)
		if sc.wantListen {
			e.connect(false)
		}
		return
	}
	sc.connected = true
	e.rec.UpdatePrompt(e.bias)
	if sc.wantListen {
		sc.wantListen = false
		e.listen()
	}
}

func (e *Engine) callbacks() RecognitionCallbacks {
	return RecognitionCallbacks{
		OnPartial: func(text string) {
			e.post(transcriptEvent{seq: e.listenSeq.Load(), text: text})
		},
		OnCommitted: func(text string) {
			e.post(transcriptEvent{seq: e.listenSeq.Load(), text: text, committed: true})
		},
		OnAudioLevel: func(level float64) {
			e.post(levelEvent{level: level})
		},
		OnSessionStarted: func() {
			e.post(sessionStartedEvent{})
		},
		OnDisconnect: func(err error) {
			e.post(disconnectEvent{err: err})
		},
		OnError: func(err error) {
			e.post(recognizerErrorEvent{err: err})
		},
	}
}

// onDisconnect retries once when the connection drops mid-attempt. A drop
// while idle only marks the session for reconnection on the next attempt.
func (e *Engine) onDisconnect(err error) {
	sc := e.sc
	wasConnected := sc.connected
	sc.connected = false
	e.logger.Warn("recognizer disconnected", "err", err, "listening", sc.listening)
	if !wasConnected || (!sc.listening && !sc.wantListen) {
		return
	}
	if sc.reconnecting {
		e.connectionLost(err)
		return
	}
	sc.listening = false
	sc.recording = false
	sc.timers.cancel(timerTick)
	sc.reconnecting = true
	sc.wantListen = true
	sc.status = model.StatusConnecting
	e.connect(true)
}

func (e *Engine) connectionLost(err error) {
	sc := e.sc
	e.halt(false)
	sc.connected = false
	sc.reconnecting = false
	sc.status = model.StatusIdle
	sc.prompt = PromptRetry
	sc.err = fmt.Errorf("%w: %v", ErrConnectionLost, err)
	e.logger.Error("recognizer reconnect failed", "err", err)
}

func (e *Engine) onTranscript(ev transcriptEvent) {
	sc := e.sc
	if ev.seq != sc.seq || !sc.listening {
		return
	}
	if ev.committed {
		sc.heard.commit(ev.text)
	} else {
		sc.heard.setPartial(ev.text)
	}
	text := sc.heard.text()
	now := e.clock.Now()
	sc.monitor.Observe(text, now)
	if sc.monitor.Heard() {
		sc.tracker.SpeechDetected(now)
		if sc.prompt == PromptNudge {
			sc.prompt = PromptNone
		}
	}
	sc.lock = matcher.MatchUpdate(sc.expected, text, sc.lock, e.scene.BiasTokens)
}

func (e *Engine) checkSilence() {
	sc := e.sc
	if !sc.listening || sc.monitor == nil {
		return
	}
	switch sc.monitor.Check(e.clock.Now()) {
	case silence.Wait:
		e.after(timerTick, silence.Interval)
	case silence.Finish:
		e.evaluate()
	case silence.NoSpeech:
		e.noSpeech()
	}
}

// noSpeech handles an attempt that stayed silent up to the ceiling.
func (e *Engine) noSpeech() {
	sc := e.sc
	switch sc.mode {
	case model.ModeRepeat:
		if sc.builder == nil {
			return
		}
		if step := sc.builder.RecordTimeout(); step.Suspended {
			e.waitForUser(ErrNoSpeech)
			return
		}
		e.segmentCycle()
	default:
		if !sc.nudged {
			sc.nudged = true
			sc.prompt = PromptNudge
			sc.monitor.Rearm(e.clock.Now())
			e.after(timerTick, silence.Interval)
			return
		}
		e.waitForUser(ErrNoSpeech)
	}
}

// waitForUser stops listening and shows the "still there?" prompt.
func (e *Engine) waitForUser(err error) {
	sc := e.sc
	e.halt(false)
	sc.status = model.StatusIdle
	sc.prompt = PromptStillThere
	sc.err = err
}

func (e *Engine) continueAfterSilence() {
	sc := e.sc
	if sc.prompt != PromptStillThere {
		return
	}
	sc.prompt = PromptNone
	sc.err = nil
	if sc.builder != nil {
		sc.builder.Continue()
	}
	e.retryAttempt()
}

// evaluate scores the finished attempt.
func (e *Engine) evaluate() {
	sc := e.sc
	line, ok := e.currentLine()
	if !ok {
		return
	}
	now := e.clock.Now()
	e.pauseCapture()
	sc.timers.cancel(timerTick)
	sc.listening = false
	var pcm []byte
	if sc.recording {
		pcm = e.rec.StopRecording()
		sc.recording = false
	}
	sc.level = 0

	spoken := sc.heard.text()
	score := matcher.ScoreAccuracy(sc.expected, spoken, e.cfg.Strict, e.scene.BiasTokens)
	sc.results = score.Results
	if !e.cfg.Strict {
		sc.results = matcher.WordByWord(sc.expected, spoken, e.scene.BiasTokens)
	}
	sc.accuracy = score.AccuracyPercent
	e.logger.Debug("attempt scored", "line", line.ID, "correct", score.IsCorrect,
		"accuracy", score.AccuracyPercent, "missing", len(score.MissingWords), "wrong", len(score.WrongWords))

	var sample *model.PacingSample
	if s, ok := sc.tracker.Complete(now, e.target(line)); ok {
		sample = &s
		sc.lastPacing = sample
	}

	if sc.wholeLine {
		attempt := model.Attempt{
			ID:              uuid.NewString(),
			SessionID:       sc.sessionID,
			UserID:          e.cfg.UserID,
			ScriptID:        e.scene.ID,
			LineID:          line.ID,
			Mode:            sc.mode,
			StartedAt:       sc.attemptStarted,
			EndedAt:         now,
			Correct:         score.IsCorrect,
			AccuracyPercent: score.AccuracyPercent,
			Pacing:          sample,
		}
		e.persist("record attempt", func(ctx context.Context) error {
			return e.store.RecordAttempt(ctx, attempt)
		})
		if len(pcm) > 0 && e.recordings != nil {
			sink := e.recordings
			e.persist("save recording", func(ctx context.Context) error {
				return sink.SaveRecording(ctx, attempt, pcm)
			})
		}
	}

	switch sc.mode {
	case model.ModeRepeat:
		e.buildResult(line, score.IsCorrect)
	default:
		e.practiceResult(line, score.IsCorrect)
	}
}

// target is the reference duration for sc.expected at the playback rate.
func (e *Engine) target(line model.Line) time.Duration {
	sc := e.sc
	lineWords := matcher.WordCount(line.Content)
	ref := sc.reference
	if ref <= 0 {
		ref = pacing.EstimateTarget(lineWords)
	}
	if expWords := matcher.WordCount(sc.expected); lineWords > 0 && expWords < lineWords {
		ref = ref * time.Duration(expWords) / time.Duration(lineWords)
	}
	return pacing.Target(ref, e.cfg.Rate)
}

func (e *Engine) practiceResult(line model.Line, correct bool) {
	sc := e.sc
	if correct {
		sc.status = model.StatusCorrect
		sc.stats.Correct++
		sc.failures = 0
		e.completeLine(line)
		e.afterLine()
		return
	}
	sc.status = model.StatusWrong
	sc.stats.Wrong++
	sc.err = ErrMismatch
	if sc.failLineID != line.ID {
		sc.failLineID = line.ID
		sc.failures = 0
	}
	sc.failures++
	if sc.failures >= e.cfg.MaxFailures {
		e.logger.Info("failure limit reached", "line", line.ID, "failures", sc.failures)
		sc.failures = 0
		e.halt(false)
		sc.status = model.StatusIdle
		sc.prompt = PromptFailed
		return
	}
	if e.cfg.Failure == model.FailureWait {
		sc.prompt = PromptRetry
		return
	}
	e.after(timerRetry, retryDelay)
}

func (e *Engine) buildResult(line model.Line, correct bool) {
	sc := e.sc
	b := sc.builder
	if correct {
		step := b.RecordCorrect()
		sc.status = model.StatusCorrect
		e.saveProgress()
		if step.Complete {
			sc.stats.Correct++
			e.completeLine(line)
			e.afterLine()
			return
		}
		e.after(timerRetry, segmentDelay)
		return
	}
	sc.stats.Wrong++
	step := b.RecordWrong()
	sc.status = model.StatusWrong
	sc.err = ErrMismatch
	if step.RolledBack {
		e.saveProgress()
	}
	e.after(timerRetry, retryDelay)
}

// afterLine advances automatically or waits for the user.
func (e *Engine) afterLine() {
	if e.cfg.AutoAdvance {
		e.after(timerAdvance, advanceDelay)
		return
	}
	e.sc.prompt = PromptNext
}

// afterMiss continues once the retry delay elapsed.
func (e *Engine) afterMiss() {
	sc := e.sc
	if sc.mode == model.ModeRepeat {
		e.segmentCycle()
		return
	}
	switch e.cfg.Failure {
	case model.FailureRepeatLine:
		e.retryAttempt()
	case model.FailureRestartLine:
		e.replayCue()
	case model.FailureRestartScene:
		e.enterLine(0)
	case model.FailureWait:
		sc.prompt = PromptRetry
	}
}

// retryAttempt listens again for the current text without replaying the
// partner's cue.
func (e *Engine) retryAttempt() {
	sc := e.sc
	if sc.mode == model.ModeRepeat {
		if sc.builder != nil {
			e.segmentCycle()
		}
		return
	}
	line, ok := e.currentLine()
	if !ok || !line.IsUserLine || line.IsDirection() || sc.mode != model.ModePractice {
		return
	}
	e.halt(false)
	sc.prompt = PromptNone
	sc.err = nil
	sc.expected = line.Content
	sc.wholeLine = true
	e.beginAttempt(e.cfg.Cue)
}

// replayCue plays the partner line preceding the current line and listens
// again.
func (e *Engine) replayCue() {
	sc := e.sc
	i := sc.index - 1
	if i < 0 || i >= len(e.scene.Lines) {
		e.retryAttempt()
		return
	}
	cue := e.scene.Lines[i]
	if cue.IsUserLine || cue.IsDirection() {
		e.retryAttempt()
		return
	}
	e.halt(false)
	sc.prompt = PromptNone
	sc.err = nil
	sc.status = model.StatusPartnerSpeaking
	sc.resetAttempt()
	sc.results = nil
	e.speak(cue.Content, e.voiceFor(cue), e.cfg.Rate, func() {
		e.sc.tracker.PartnerFinished(e.clock.Now())
		e.beginAttempt(e.cfg.Cue)
	})
}
