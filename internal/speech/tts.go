package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/verte-zerg/cueline/internal/audio"
	"github.com/verte-zerg/cueline/internal/session"
)

const (
	defaultHTTPBaseURL = "https://api.elevenlabs.io"
	defaultTTSModel    = "eleven_multilingual_v2"
	// DefaultVoice is used when a character has no voice configured.
	DefaultVoice = "21m00Tcm4TlvDq8ikWAM"
)

// TTSConfig configures speech synthesis.
type TTSConfig struct {
	APIKey       string
	BaseURL      string
	ModelID      string
	DefaultVoice string
	Timeout      time.Duration
}

// TTS synthesizes PCM16 audio through the ElevenLabs HTTP API.
type TTS struct {
	cfg    TTSConfig
	client *http.Client
}

// NewTTS returns a synthesizer.
func NewTTS(cfg TTSConfig) *TTS {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultHTTPBaseURL
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = defaultTTSModel
	}
	if strings.TrimSpace(cfg.DefaultVoice) == "" {
		cfg.DefaultVoice = DefaultVoice
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &TTS{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Voice returns the voice actually used for voice.
func (t *TTS) Voice(voice string) string {
	if strings.TrimSpace(voice) == "" {
		return t.cfg.DefaultVoice
	}
	return voice
}

// Model returns the synthesis model id.
func (t *TTS) Model() string { return t.cfg.ModelID }

// Synthesize returns text spoken by voice.
func (t *TTS) Synthesize(ctx context.Context, text, voice string) (audio.Clip, error) {
	u, err := url.Parse(strings.TrimRight(t.cfg.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(t.Voice(voice)))
	if err != nil {
		return audio.Clip{}, err
	}
	q := u.Query()
	q.Set("output_format", fmt.Sprintf("pcm_%d", audio.SampleRate))
	u.RawQuery = q.Encode()

	body, err := json.Marshal(ttsRequest{Text: text, ModelID: t.cfg.ModelID})
	if err != nil {
		return audio.Clip{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return audio.Clip{}, err
	}
	req.Header.Set("xi-api-key", t.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return audio.Clip{}, fmt.Errorf("tts status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("read tts audio: %w", err)
	}
	return audio.NewClip(pcm, audio.SampleRate), nil
}

var _ session.Synthesizer = (*TTS)(nil)
