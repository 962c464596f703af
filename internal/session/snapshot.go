package session

import (
	"github.com/verte-zerg/cueline/internal/model"
	"github.com/verte-zerg/cueline/internal/segment"
)

// Prompt is a question or hint waiting for the user.
type Prompt int

const (
	PromptNone Prompt = iota
	// PromptStart waits for the user to begin.
	PromptStart
	// PromptNudge reminds a silent user that it is their turn.
	PromptNudge
	// PromptStillThere waits for confirmation after repeated silence.
	PromptStillThere
	// PromptResume offers to resume repeat mode from a checkpoint.
	PromptResume
	// PromptNext waits for a manual advance after a correct line.
	PromptNext
	// PromptRetry waits for the user after a wrong line.
	PromptRetry
	// PromptFailed is shown once the consecutive-failure limit is reached.
	PromptFailed
	// PromptDone marks the end of the scene.
	PromptDone
)

func (p Prompt) String() string {
	switch p {
	case PromptNone:
		return ""
	case PromptStart:
		return "press space to start"
	case PromptNudge:
		return "your line"
	case PromptStillThere:
		return "still there? press c to continue"
	case PromptResume:
		return "resume from checkpoint? r resume, 0 restart"
	case PromptNext:
		return "correct, press n for the next line"
	case PromptRetry:
		return "press space to try again"
	case PromptFailed:
		return "too many misses, space retries, s skips"
	case PromptDone:
		return "scene complete"
	default:
		return ""
	}
}

// Snapshot is the state published after every change.
type Snapshot struct {
	SceneTitle string
	Mode       model.LearningMode
	Directions model.DirectionsMode
	Status     model.Status
	Prompt     Prompt
	Running    bool

	LineIndex  int
	TotalLines int
	Line       model.Line
	// Expected is the text the user has to say now: the line, or the
	// accumulated segments in repeat mode.
	Expected string

	Transcript   string
	MatchedWords int
	HasError     bool
	Results      []model.WordResult
	Accuracy     float64
	Level        float64

	Segments     []string
	SegmentIndex int
	RepeatsLeft  int
	Build        *model.BuildProgress
	Offer        *segment.ResumeOffer

	Pacing *model.PacingSample

	Correct   int
	Wrong     int
	Completed int

	Err error
}
