package session

import (
	"fmt"
	"time"

	"github.com/verte-zerg/cueline/internal/model"
)

type event interface {
	sessionEvent()
}

type command int

const (
	cmdStart command = iota
	cmdSkip
	cmdRetry
	cmdNext
	cmdPrevious
	cmdResume
	cmdRestartBuild
	cmdContinue
	cmdCycleMode
	cmdStop
	cmdQuit
)

type commandEvent struct{ cmd command }

type setModeEvent struct{ mode model.LearningMode }

type connectedEvent struct {
	seq       uint64
	err       error
	reconnect bool
}

type playbackDoneEvent struct {
	seq uint64
	err error
}

type referenceEvent struct {
	epoch    uint64
	duration time.Duration
	err      error
}

type progressEvent struct {
	epoch    uint64
	progress *model.BuildProgress
	err      error
}

type transcriptEvent struct {
	seq       uint64
	text      string
	committed bool
}

type levelEvent struct{ level float64 }

type sessionStartedEvent struct{}

type disconnectEvent struct{ err error }

type recognizerErrorEvent struct{ err error }

type timerEvent struct {
	seq  uint64
	kind timerKind
}

func (commandEvent) sessionEvent()         {}
func (setModeEvent) sessionEvent()         {}
func (connectedEvent) sessionEvent()       {}
func (playbackDoneEvent) sessionEvent()    {}
func (referenceEvent) sessionEvent()       {}
func (progressEvent) sessionEvent()        {}
func (transcriptEvent) sessionEvent()      {}
func (levelEvent) sessionEvent()           {}
func (sessionStartedEvent) sessionEvent()  {}
func (disconnectEvent) sessionEvent()      {}
func (recognizerErrorEvent) sessionEvent() {}
func (timerEvent) sessionEvent()           {}

// handle applies one event. It reports whether the engine should stop.
func (e *Engine) handle(ev event) bool {
	switch ev := ev.(type) {
	case commandEvent:
		return e.handleCommand(ev.cmd)
	case setModeEvent:
		e.changeMode(ev.mode)
	case connectedEvent:
		e.onConnected(ev)
	case playbackDoneEvent:
		e.onPlaybackDone(ev)
	case referenceEvent:
		e.onReference(ev)
	case progressEvent:
		e.onProgress(ev)
	case transcriptEvent:
		e.onTranscript(ev)
	case levelEvent:
		if e.sc.listening {
			e.sc.level = ev.level
		}
	case sessionStartedEvent:
		e.logger.Debug("recognizer session started")
	case disconnectEvent:
		e.onDisconnect(ev.err)
	case recognizerErrorEvent:
		e.logger.Warn("recognizer error", "err", ev.err)
		e.sc.err = ev.err
	case timerEvent:
		e.onTimer(ev)
	default:
		panic(fmt.Sprintf("session: unhandled event %T", ev))
	}
	return false
}

func (e *Engine) handleCommand(cmd command) bool {
	sc := e.sc
	switch cmd {
	case cmdStart:
		e.answer()
	case cmdSkip, cmdNext:
		sc.running = true
		e.enterLine(sc.index + 1)
	case cmdPrevious:
		sc.running = true
		e.enterLine(max(sc.index-1, 0))
	case cmdRetry:
		sc.running = true
		e.enterLine(sc.index)
	case cmdResume:
		e.resumeBuild()
	case cmdRestartBuild:
		e.restartBuild()
	case cmdContinue:
		e.continueAfterSilence()
	case cmdCycleMode:
		e.changeMode(sc.mode.Next())
	case cmdStop:
		e.halt(true)
		sc.running = false
		sc.status = model.StatusIdle
		sc.prompt = PromptStart
	case cmdQuit:
		e.halt(true)
		sc.running = false
		sc.status = model.StatusIdle
		return true
	default:
		panic(fmt.Sprintf("session: unhandled command %d", cmd))
	}
	return false
}

// answer handles the primary key: it starts the rehearsal or responds to
// the current prompt.
func (e *Engine) answer() {
	sc := e.sc
	switch sc.prompt {
	case PromptStart:
		sc.running = true
		e.enterLine(sc.index)
	case PromptDone:
		sc.running = true
		e.enterLine(0)
	case PromptNext:
		e.enterLine(sc.index + 1)
	case PromptRetry, PromptFailed:
		e.retryAttempt()
	case PromptStillThere:
		e.continueAfterSilence()
	case PromptResume:
		e.resumeBuild()
	case PromptNone, PromptNudge:
	}
}

func (e *Engine) changeMode(mode model.LearningMode) {
	sc := e.sc
	if mode == sc.mode {
		return
	}
	sc.mode = mode
	sc.failures = 0
	if sc.running {
		e.enterLine(sc.index)
		return
	}
	e.halt(false)
	sc.resetLine()
}

func (e *Engine) onTimer(ev timerEvent) {
	sc := e.sc
	if ev.seq != sc.seq {
		return
	}
	delete(sc.timers.pending, ev.kind)
	switch ev.kind {
	case timerTick:
		e.checkSilence()
	case timerAdvance, timerShow:
		e.enterLine(sc.index + 1)
	case timerRetry:
		e.afterMiss()
	}
}
