package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/verte-zerg/cueline/internal/audio"
	"github.com/verte-zerg/cueline/internal/model"
)

// Recordings saves attempt audio as WAV files under a root directory, one
// folder per script.
type Recordings struct {
	dir string
}

// NewRecordings returns a sink writing below dir.
func NewRecordings(dir string) *Recordings {
	return &Recordings{dir: dir}
}

// Path returns where the recording of attempt is stored.
func (r *Recordings) Path(attempt model.Attempt) string {
	script := attempt.ScriptID
	if script == "" {
		script = "unsorted"
	}
	return filepath.Join(r.dir, script, fmt.Sprintf("%s-%s.wav", attempt.LineID, attempt.ID))
}

// SaveRecording writes pcm for attempt. Empty audio is skipped.
func (r *Recordings) SaveRecording(_ context.Context, attempt model.Attempt, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	if err := audio.WriteWAVFile(r.Path(attempt), pcm, audio.SampleRate); err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	return nil
}
