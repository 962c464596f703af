package session

import (
	"strings"
	"time"
)

type timerKind int

const (
	timerTick timerKind = iota
	timerAdvance
	timerRetry
	timerShow
)

// timerSet holds at most one pending timer per kind.
type timerSet struct {
	clock   Clock
	pending map[timerKind]Timer
}

func newTimerSet(clock Clock) timerSet {
	return timerSet{clock: clock, pending: map[timerKind]Timer{}}
}

// schedule replaces any pending timer of the same kind.
func (t *timerSet) schedule(kind timerKind, d time.Duration, f func()) {
	t.cancel(kind)
	t.pending[kind] = t.clock.AfterFunc(d, f)
}

func (t *timerSet) cancel(kind timerKind) {
	if timer, ok := t.pending[kind]; ok {
		timer.Stop()
		delete(t.pending, kind)
	}
}

func (t *timerSet) cancelAll() {
	for kind, timer := range t.pending {
		timer.Stop()
		delete(t.pending, kind)
	}
}

// transcript accumulates committed text and the latest partial hypothesis.
type transcript struct {
	committed []string
	partial   string
}

func (t *transcript) reset() {
	t.committed = nil
	t.partial = ""
}

func (t *transcript) setPartial(text string) {
	t.partial = strings.TrimSpace(text)
}

func (t *transcript) commit(text string) {
	text = strings.TrimSpace(text)
	if text != "" {
		t.committed = append(t.committed, text)
	}
	t.partial = ""
}

func (t *transcript) text() string {
	parts := t.committed
	if t.partial != "" {
		parts = append(parts[:len(parts):len(parts)], t.partial)
	}
	return strings.Join(parts, " ")
}
