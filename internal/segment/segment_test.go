package segment

import (
	"reflect"
	"strings"
	"testing"

	"github.com/verte-zerg/cueline/internal/model"
)

func TestBuildSegmentsFixedWindows(t *testing.T) {
	line := model.Line{Content: "one two three four five six seven eight nine"}
	got := BuildSegments(line)
	want := []string{"one two three four", "five six seven eight nine"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestBuildSegmentsStripsParentheticals(t *testing.T) {
	line := model.Line{Content: "(softly) I never said that (beat) to anyone"}
	got := BuildSegments(line)
	want := []string{"I never said that", "to anyone"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestBuildSegmentsCuratedMerging(t *testing.T) {
	line := model.Line{
		Content:          "ignored",
		PracticeSegments: []string{"Look", "at me when", "(beat)", "I", "talk to you"},
	}
	got := BuildSegments(line)
	want := []string{"Look at me when I", "talk to you"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestBuildSegmentsCountsSpokenWords(t *testing.T) {
	curated := model.Line{PracticeSegments: []string{"I never said that.", "— no"}}
	if got := BuildSegments(curated); !reflect.DeepEqual(got, []string{"I never said that. — no"}) {
		t.Fatalf("expected the dash segment merged, got %v", got)
	}
	windowed := model.Line{Content: "I never said that — no"}
	if got := BuildSegments(windowed); !reflect.DeepEqual(got, []string{"I never said that — no"}) {
		t.Fatalf("expected one segment, got %v", got)
	}
	if got := BuildSegments(model.Line{PracticeSegments: []string{"—"}, Content: "—"}); len(got) != 0 {
		t.Fatalf("expected no segments without words, got %v", got)
	}
}

func TestBuildSegmentsSingleWordLine(t *testing.T) {
	got := BuildSegments(model.Line{Content: "Hello."})
	if !reflect.DeepEqual(got, []string{"Hello."}) {
		t.Fatalf("unexpected segments %v", got)
	}
	if got := BuildSegments(model.Line{Content: "(silence)"}); len(got) != 0 {
		t.Fatalf("expected no segments for an empty line, got %v", got)
	}
}

func TestBuildSegmentsMinimumSize(t *testing.T) {
	for n := 2; n <= 23; n++ {
		words := make([]string, n)
		for i := range words {
			words[i] = "w"
		}
		segs := BuildSegments(model.Line{Content: strings.Join(words, " ")})
		total := 0
		for _, s := range segs {
			c := len(strings.Fields(s))
			if c < MinWords {
				t.Fatalf("line of %d words produced short segment %q", n, s)
			}
			total += c
		}
		if total != n {
			t.Fatalf("line of %d words lost words: %v", n, segs)
		}
	}
}

func TestAccumulated(t *testing.T) {
	segs := []string{"a b", "c d", "e f"}
	if got := Accumulated(segs, 1); got != "a b c d" {
		t.Fatalf("unexpected accumulated text %q", got)
	}
	if got := Accumulated(segs, 9); got != "a b c d e f" {
		t.Fatalf("unexpected clamped text %q", got)
	}
}

func TestIsCheckpoint(t *testing.T) {
	cases := []struct {
		k, total int
		want     bool
	}{
		{0, 12, false},
		{4, 12, false},
		{5, 12, true},
		{10, 12, true},
		{10, 10, false},
		{5, 6, true},
		{5, 5, false},
	}
	for _, c := range cases {
		if got := IsCheckpoint(c.k, c.total); got != c.want {
			t.Fatalf("IsCheckpoint(%d, %d) = %v, want %v", c.k, c.total, got, c.want)
		}
	}
}

func makeSegments(n int) []string {
	segs := make([]string, n)
	for i := range segs {
		segs[i] = "w w"
	}
	return segs
}

func TestBuilderCheckpointsOnTransitions(t *testing.T) {
	b := NewBuilder(makeSegments(12), 0)
	var checkpoints []int
	for !b.Complete() {
		step := b.RecordCorrect()
		if step.Checkpoint != IsCheckpoint(step.Index, b.Total()) {
			t.Fatalf("checkpoint flag mismatch at %d", step.Index)
		}
		if step.Checkpoint {
			checkpoints = append(checkpoints, step.Index)
		}
	}
	if !reflect.DeepEqual(checkpoints, []int{5, 10}) {
		t.Fatalf("unexpected checkpoints %v", checkpoints)
	}
	p := b.Progress()
	if !p.IsComplete || p.HighestCheckpoint != 10 || !reflect.DeepEqual(p.CheckpointIndices, []int{5, 10}) {
		t.Fatalf("unexpected progress %+v", p)
	}
}

func TestBuilderRollbackAfterThreeWrong(t *testing.T) {
	b := NewBuilder(makeSegments(6), 0)
	b.RecordCorrect()
	b.RecordCorrect()
	if b.Index() != 2 {
		t.Fatalf("expected index 2, got %d", b.Index())
	}
	b.RecordWrong()
	b.RecordWrong()
	step := b.RecordWrong()
	if !step.RolledBack || b.Index() != 1 {
		t.Fatalf("expected rollback to 1, got %+v index %d", step, b.Index())
	}
	if b.ConsecutiveWrong() != 0 {
		t.Fatalf("expected wrong counter reset, got %d", b.ConsecutiveWrong())
	}
}

func TestBuilderNoRollbackBelowZero(t *testing.T) {
	b := NewBuilder(makeSegments(3), 0)
	for i := 0; i < 3; i++ {
		b.RecordWrong()
	}
	if b.Index() != 0 || b.ConsecutiveWrong() != 0 {
		t.Fatalf("expected to stay at 0 with reset counter, got %d/%d", b.Index(), b.ConsecutiveWrong())
	}
}

func TestBuilderTimeoutsSuspend(t *testing.T) {
	b := NewBuilder(makeSegments(3), 0)
	b.RecordTimeout()
	b.RecordWrong()
	if b.ConsecutiveTimeouts() != 0 {
		t.Fatalf("speech should clear the timeout streak")
	}
	b.RecordTimeout()
	b.RecordTimeout()
	if b.Suspended() {
		t.Fatalf("two timeouts should not suspend")
	}
	if step := b.RecordTimeout(); !step.Suspended || !b.Suspended() {
		t.Fatalf("expected suspension on the third timeout")
	}
	b.Continue()
	if b.Suspended() || b.ConsecutiveTimeouts() != 0 {
		t.Fatalf("expected continue to clear the suspension")
	}
}

func TestBuilderFullLineRepeats(t *testing.T) {
	b := NewBuilder(makeSegments(2), 2)
	b.RecordCorrect()
	step := b.RecordCorrect()
	if !step.FullRepeat || b.Complete() {
		t.Fatalf("expected full-line repetition phase, got %+v", step)
	}
	if b.Current() != "w w w w" {
		t.Fatalf("expected the full line, got %q", b.Current())
	}
	if step := b.RecordCorrect(); step.Complete {
		t.Fatalf("one repetition should remain")
	}
	if step := b.RecordCorrect(); !step.Complete || !b.Complete() {
		t.Fatalf("expected completion after the repetitions")
	}
}

func TestBuilderResumeOffer(t *testing.T) {
	b := NewBuilder(makeSegments(12), 0)
	stored := &model.BuildProgress{
		CurrentSegmentIndex: 7,
		TotalSegments:       12,
		HighestCheckpoint:   5,
		CheckpointIndices:   []int{5},
	}
	offer, ok := b.Offer(stored)
	if !ok {
		t.Fatalf("expected a resume offer")
	}
	if offer.SegmentIndex != 5 || offer.DisplaySegment() != 6 {
		t.Fatalf("unexpected offer %+v", offer)
	}
	if b.Index() != 0 {
		t.Fatalf("offering must not move the builder")
	}
	b.ResumeFrom(*stored)
	if b.Index() != 5 {
		t.Fatalf("expected resume at 5, got %d", b.Index())
	}

	for _, p := range []*model.BuildProgress{
		nil,
		{TotalSegments: 12},
		{TotalSegments: 12, HighestCheckpoint: 5, IsComplete: true},
		{TotalSegments: 9, HighestCheckpoint: 5},
	} {
		if _, ok := b.Offer(p); ok {
			t.Fatalf("unexpected offer for %+v", p)
		}
	}
}
