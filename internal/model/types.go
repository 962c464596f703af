// Package model defines shared data structures.
package model

import "time"

// LineType classifies a script line.
type LineType int

const (
	LineDialogue LineType = iota
	LineAction
	LineTransition
)

// String returns the scene-file spelling of the line type.
func (t LineType) String() string {
	switch t {
	case LineDialogue:
		return "dialogue"
	case LineAction:
		return "action"
	case LineTransition:
		return "transition"
	default:
		return "unknown"
	}
}

// ParseLineType maps a scene-file value to a LineType. Empty means dialogue.
func ParseLineType(s string) (LineType, bool) {
	switch s {
	case "", "dialogue":
		return LineDialogue, true
	case "action":
		return LineAction, true
	case "transition":
		return LineTransition, true
	default:
		return LineDialogue, false
	}
}

// Line is one entry of a scene.
type Line struct {
	ID               string
	CharacterName    string
	Content          string
	IsUserLine       bool
	LineType         LineType
	Parenthetical    string
	SortOrder        int
	PracticeSegments []string
}

// IsDirection reports whether the line is a stage direction rather than dialogue.
func (l Line) IsDirection() bool {
	return l.LineType != LineDialogue
}

// Character is a speaking part and the voice used to synthesize it.
type Character struct {
	Name  string
	Voice string
}

// Scene is an ordered script excerpt rehearsed as a unit.
type Scene struct {
	ID         string
	Title      string
	Characters []Character
	Lines      []Line
	// BiasTokens are names and proper nouns recognizers tend to mishear.
	BiasTokens []string
	// UserCharacter is the part the user plays.
	UserCharacter string
}

// VoiceFor returns the voice of a character, or "" when none is set.
func (s Scene) VoiceFor(name string) string {
	for _, c := range s.Characters {
		if c.Name == name {
			return c.Voice
		}
	}
	return ""
}

// Status is the practice state of the current line.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusListening
	StatusCorrect
	StatusWrong
	StatusSegmentPlaying
	StatusNarrating
	StatusPartnerSpeaking
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusListening:
		return "listening"
	case StatusCorrect:
		return "correct"
	case StatusWrong:
		return "wrong"
	case StatusSegmentPlaying:
		return "segment-playing"
	case StatusNarrating:
		return "narrating"
	case StatusPartnerSpeaking:
		return "partner-speaking"
	default:
		return "unknown"
	}
}

// LearningMode selects how user lines are rehearsed.
type LearningMode int

const (
	ModeListen LearningMode = iota
	ModePractice
	ModeRepeat
)

func (m LearningMode) String() string {
	switch m {
	case ModeListen:
		return "listen"
	case ModePractice:
		return "practice"
	case ModeRepeat:
		return "repeat"
	default:
		return "unknown"
	}
}

// Next cycles listen -> practice -> repeat -> listen.
func (m LearningMode) Next() LearningMode {
	switch m {
	case ModeListen:
		return ModePractice
	case ModePractice:
		return ModeRepeat
	case ModeRepeat:
		return ModeListen
	default:
		return ModePractice
	}
}

// ParseLearningMode maps a flag or config value to a LearningMode.
func ParseLearningMode(s string) (LearningMode, bool) {
	switch s {
	case "listen":
		return ModeListen, true
	case "practice":
		return ModePractice, true
	case "repeat", "build":
		return ModeRepeat, true
	default:
		return ModePractice, false
	}
}

// DirectionsMode selects how action and transition lines are handled.
type DirectionsMode int

const (
	DirectionsSpeak DirectionsMode = iota
	DirectionsShow
	DirectionsSkip
)

func (d DirectionsMode) String() string {
	switch d {
	case DirectionsSpeak:
		return "speak"
	case DirectionsShow:
		return "show"
	case DirectionsSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// ParseDirectionsMode maps a flag or config value to a DirectionsMode.
func ParseDirectionsMode(s string) (DirectionsMode, bool) {
	switch s {
	case "speak":
		return DirectionsSpeak, true
	case "show":
		return DirectionsShow, true
	case "skip":
		return DirectionsSkip, true
	default:
		return DirectionsShow, false
	}
}

// FailurePolicy is applied after a wrong attempt in practice mode.
type FailurePolicy int

const (
	FailureRepeatLine FailurePolicy = iota
	FailureRestartLine
	FailureRestartScene
	FailureWait
)

func (p FailurePolicy) String() string {
	switch p {
	case FailureRepeatLine:
		return "repeat-line"
	case FailureRestartLine:
		return "restart-line"
	case FailureRestartScene:
		return "restart-scene"
	case FailureWait:
		return "wait"
	default:
		return "unknown"
	}
}

// ParseFailurePolicy maps a flag or config value to a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, bool) {
	switch s {
	case "repeat-line":
		return FailureRepeatLine, true
	case "restart-line":
		return FailureRestartLine, true
	case "restart-scene":
		return FailureRestartScene, true
	case "wait":
		return FailureWait, true
	default:
		return FailureRepeatLine, false
	}
}

// Verdict classifies one expected word after an utterance.
type Verdict int

const (
	VerdictMissing Verdict = iota
	VerdictCorrect
	VerdictWrong
)

func (v Verdict) String() string {
	switch v {
	case VerdictMissing:
		return "missing"
	case VerdictCorrect:
		return "correct"
	case VerdictWrong:
		return "wrong"
	default:
		return "unknown"
	}
}

// WordResult pairs an expected word with its verdict.
type WordResult struct {
	Word    string
	Verdict Verdict
}

// BuildProgress is the persisted state of repeat mode for one line.
type BuildProgress struct {
	CurrentSegmentIndex int
	TotalSegments       int
	HighestCheckpoint   int
	CheckpointIndices   []int
	IsComplete          bool
	UpdatedAt           time.Time
}

// PracticeStats counts results within one rehearsal session.
type PracticeStats struct {
	Correct   int
	Wrong     int
	Completed map[string]struct{}
}

// NewPracticeStats returns zeroed counters.
func NewPracticeStats() PracticeStats {
	return PracticeStats{Completed: map[string]struct{}{}}
}

// Accuracy returns correct / (correct + wrong), or 0 with no attempts.
func (s PracticeStats) Accuracy() float64 {
	total := s.Correct + s.Wrong
	if total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(total)
}

// PacingBand is the advisory classification of a pacing delta.
type PacingBand int

const (
	PacingGood PacingBand = iota
	PacingCaution
	PacingPoor
)

func (b PacingBand) String() string {
	switch b {
	case PacingGood:
		return "good"
	case PacingCaution:
		return "caution"
	case PacingPoor:
		return "poor"
	default:
		return "unknown"
	}
}

// PacingSample compares the user's delivery with the reference timing.
type PacingSample struct {
	PickupMs         int64
	HasPickup        bool
	UserDurationMs   int64
	TargetDurationMs int64
	DeltaPercent     float64
	Band             PacingBand
}

// Attempt is one scored utterance stored for statistics.
type Attempt struct {
	ID              string
	SessionID       string
	UserID          string
	ScriptID        string
	LineID          string
	Mode            LearningMode
	StartedAt       time.Time
	EndedAt         time.Time
	Correct         bool
	AccuracyPercent float64
	Pacing          *PacingSample
}

// LineAggregate summarizes stored attempts for one line.
type LineAggregate struct {
	LineID          string
	Attempts        int
	Correct         int
	AccuracySum     float64
	DeltaSum        float64
	DeltaCount      int
	LastAttemptedAt time.Time
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	UserID   string
	ScriptID string
	Since    *time.Time
	Top      int
}
