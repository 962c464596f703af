// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file. Pointer fields stay nil
// when a key is absent so flag defaults apply.
type FileConfig struct {
	Rehearsal RehearsalConfig `toml:"rehearsal"`
	Speech    SpeechConfig    `toml:"speech"`
	Audio     AudioConfig     `toml:"audio"`
	Store     StoreConfig     `toml:"store"`
	Log       LogConfig       `toml:"log"`
}

// RehearsalConfig maps rehearsal settings.
type RehearsalConfig struct {
	User          *string  `toml:"user"`
	Mode          *string  `toml:"mode"`
	Directions    *string  `toml:"directions"`
	Strict        *bool    `toml:"strict"`
	AutoAdvance   *bool    `toml:"auto-advance"`
	Failure       *string  `toml:"failure"`
	MaxFailures   *int     `toml:"max-failures"`
	Cue           *bool    `toml:"cue"`
	PlayUserLines *bool    `toml:"play-user-lines"`
	RepeatFull    *int     `toml:"repeat-full"`
	SilenceMs     *int     `toml:"silence-ms"`
	Rate          *float64 `toml:"rate"`
	NarratorVoice *string  `toml:"narrator-voice"`
	Record        *bool    `toml:"record"`
	Lexicon       *string  `toml:"lexicon"`
}

// SpeechConfig maps speech service settings.
type SpeechConfig struct {
	APIKeyEnv  *string `toml:"api-key-env"`
	BaseURL    *string `toml:"base-url"`
	WSBaseURL  *string `toml:"ws-url"`
	TTSModel   *string `toml:"tts-model"`
	STTModel   *string `toml:"stt-model"`
	Language   *string `toml:"language"`
	Prefetch   *int    `toml:"prefetch"`
	TimeoutSec *int    `toml:"timeout-sec"`
}

// AudioConfig maps the external audio tools.
type AudioConfig struct {
	Player  *string  `toml:"player"`
	Volume  *int     `toml:"volume"`
	Capture []string `toml:"capture"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Path        *string `toml:"path"`
	DatabaseURL *string `toml:"database-url"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	Path  *string `toml:"path"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// Template is written by `cueline config` when no file exists yet.
const Template = `# cueline configuration

[rehearsal]
# user = "local"
# mode = "practice"          # listen | practice | repeat
# directions = "show"        # speak | show | skip
# strict = false
# auto-advance = true
# failure = "repeat-line"    # repeat-line | restart-line | restart-scene | wait
# max-failures = 3
# cue = true
# play-user-lines = false
# repeat-full = 0
# silence-ms = 1200
# rate = 1.0
# narrator-voice = ""
# record = false
# lexicon = ""               # file of extra names for the recognizer, one per line

[speech]
# api-key-env = "ELEVENLABS_API_KEY"
# tts-model = "eleven_multilingual_v2"
# stt-model = "scribe_v2_realtime"
# language = "en"
# prefetch = 4
# timeout-sec = 30

[audio]
# player = "ffplay"
# volume = 80
# capture = ["ffmpeg", "-f", "pulse", "-i", "default", "-ac", "1", "-ar", "16000", "-f", "s16le", "-"]

[store]
# path = ""                  # SQLite file, defaults to the XDG data dir
# database-url = ""          # postgres://... to share progress

[log]
# level = "info"
# path = ""
`
