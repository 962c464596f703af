package segment

import "github.com/verte-zerg/cueline/internal/model"

const (
	// MaxConsecutiveWrong wrong attempts on one segment roll back a segment.
	MaxConsecutiveWrong = 3
	// MaxConsecutiveTimeouts silent attempts suspend automatic retries.
	MaxConsecutiveTimeouts = 3
)

// Step describes what a recorded outcome did to the builder.
type Step struct {
	Index      int
	Checkpoint bool
	FullRepeat bool
	Complete   bool
	RolledBack bool
	Suspended  bool
}

// ResumeOffer is presented instead of silently jumping into a line.
type ResumeOffer struct {
	SegmentIndex  int
	TotalSegments int
}

// DisplaySegment is the 1-based segment number shown to the user.
func (o ResumeOffer) DisplaySegment() int {
	return o.SegmentIndex + 1
}

// Builder tracks progressive rehearsal of one line. Index equal to the
// number of segments means every segment is done and the full line is being
// repeated.
type Builder struct {
	segments    []string
	fullRepeats int

	index               int
	highestCheckpoint   int
	checkpoints         []int
	repeatsLeft         int
	complete            bool
	consecutiveWrong    int
	consecutiveTimeouts int
	suspended           bool
}

// NewBuilder starts at segment 0. repeatFullLineTimes extra full-line
// repetitions are required once every segment is done.
func NewBuilder(segments []string, repeatFullLineTimes int) *Builder {
	if repeatFullLineTimes < 0 {
		repeatFullLineTimes = 0
	}
	return &Builder{
		segments:    append([]string(nil), segments...),
		fullRepeats: repeatFullLineTimes,
	}
}

// Offer returns a resume offer when stored progress has a usable checkpoint.
// Progress recorded against a different segmentation is ignored.
func (b *Builder) Offer(p *model.BuildProgress) (ResumeOffer, bool) {
	if p == nil || p.IsComplete || p.HighestCheckpoint <= 0 {
		return ResumeOffer{}, false
	}
	if p.TotalSegments != len(b.segments) || p.HighestCheckpoint >= len(b.segments) {
		return ResumeOffer{}, false
	}
	return ResumeOffer{SegmentIndex: p.HighestCheckpoint, TotalSegments: len(b.segments)}, true
}

// ResumeFrom continues at the stored checkpoint.
func (b *Builder) ResumeFrom(p model.BuildProgress) {
	b.Restart()
	if p.HighestCheckpoint > 0 && p.HighestCheckpoint < len(b.segments) {
		b.index = p.HighestCheckpoint
		b.highestCheckpoint = p.HighestCheckpoint
	}
	for _, c := range p.CheckpointIndices {
		if c > 0 && c <= b.highestCheckpoint {
			b.checkpoints = append(b.checkpoints, c)
		}
	}
}

// Restart returns to segment 0 and forgets checkpoints.
func (b *Builder) Restart() {
	b.index = 0
	b.highestCheckpoint = 0
	b.checkpoints = nil
	b.repeatsLeft = 0
	b.complete = false
	b.consecutiveWrong = 0
	b.consecutiveTimeouts = 0
	b.suspended = false
}

// Segments returns the segments of the line.
func (b *Builder) Segments() []string { return b.segments }

// Total returns the number of segments.
func (b *Builder) Total() int { return len(b.segments) }

// Index returns the current segment index.
func (b *Builder) Index() int { return b.index }

// InFullRepeat reports whether all segments are done and the full line is
// being repeated.
func (b *Builder) InFullRepeat() bool {
	return !b.complete && len(b.segments) > 0 && b.index >= len(b.segments)
}

// RepeatsLeft returns the remaining full-line repetitions.
func (b *Builder) RepeatsLeft() int { return b.repeatsLeft }

// Complete reports whether the line is done.
func (b *Builder) Complete() bool { return b.complete }

// Suspended reports whether automatic retries wait for the user.
func (b *Builder) Suspended() bool { return b.suspended }

// ConsecutiveWrong returns the wrong-attempt streak on the current segment.
func (b *Builder) ConsecutiveWrong() int { return b.consecutiveWrong }

// ConsecutiveTimeouts returns the silent-attempt streak.
func (b *Builder) ConsecutiveTimeouts() int { return b.consecutiveTimeouts }

// Current returns the accumulated text to play and repeat now.
func (b *Builder) Current() string {
	return Accumulated(b.segments, b.index)
}

// RecordCorrect advances after a successful repetition.
func (b *Builder) RecordCorrect() Step {
	b.consecutiveWrong = 0
	b.consecutiveTimeouts = 0
	if b.complete || len(b.segments) == 0 {
		b.complete = true
		return Step{Index: b.index, Complete: true}
	}
	if b.InFullRepeat() {
		b.repeatsLeft--
		if b.repeatsLeft <= 0 {
			b.repeatsLeft = 0
			b.complete = true
			return Step{Index: b.index, Complete: true}
		}
		return Step{Index: b.index, FullRepeat: true}
	}

	next := b.index + 1
	b.index = next
	if next >= len(b.segments) {
		if b.fullRepeats > 0 {
			b.repeatsLeft = b.fullRepeats
			return Step{Index: next, FullRepeat: true}
		}
		b.complete = true
		return Step{Index: next, Complete: true}
	}
	step := Step{Index: next}
	if IsCheckpoint(next, len(b.segments)) {
		b.checkpoints = append(b.checkpoints, next)
		b.highestCheckpoint = next
		step.Checkpoint = true
	}
	return step
}

// RecordWrong counts a scored mismatch. The third in a row steps back one
// segment, never below 0, and clears the streak.
func (b *Builder) RecordWrong() Step {
	b.consecutiveTimeouts = 0
	b.consecutiveWrong++
	step := Step{Index: b.index}
	if b.consecutiveWrong < MaxConsecutiveWrong {
		return step
	}
	b.consecutiveWrong = 0
	if b.index > 0 && !b.InFullRepeat() {
		b.index--
		step.Index = b.index
		step.RolledBack = true
	}
	return step
}

// RecordTimeout counts an attempt without any speech. The third in a row
// suspends automatic retries.
func (b *Builder) RecordTimeout() Step {
	b.consecutiveTimeouts++
	if b.consecutiveTimeouts >= MaxConsecutiveTimeouts {
		b.suspended = true
	}
	return Step{Index: b.index, Suspended: b.suspended}
}

// Continue clears a suspension after the user confirms they are back.
func (b *Builder) Continue() {
	b.suspended = false
	b.consecutiveTimeouts = 0
}

// Progress returns the persistable state.
func (b *Builder) Progress() model.BuildProgress {
	idx := b.index
	if idx >= len(b.segments) && len(b.segments) > 0 {
		idx = len(b.segments) - 1
	}
	return model.BuildProgress{
		CurrentSegmentIndex: idx,
		TotalSegments:       len(b.segments),
		HighestCheckpoint:   b.highestCheckpoint,
		CheckpointIndices:   append([]int(nil), b.checkpoints...),
		IsComplete:          b.complete,
	}
}
