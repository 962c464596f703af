// Package speech connects the rehearsal engine to ElevenLabs speech-to-text
// and text-to-speech.
package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/verte-zerg/cueline/internal/audio"
	"github.com/verte-zerg/cueline/internal/session"
)

const (
	defaultWSBaseURL = "wss://api.elevenlabs.io"
	defaultSTTModel  = "scribe_v2_realtime"
)

// ErrNotConnected is returned when listening starts without a session.
var ErrNotConnected = errors.New("speech: no recognizer session")

// Source produces PCM16 chunks from a microphone.
type Source interface {
	Start(ctx context.Context, onChunk func([]byte)) error
	Stop()
}

// RealtimeConfig configures the streaming recognizer.
type RealtimeConfig struct {
	APIKey    string
	WSBaseURL string
	ModelID   string
	Language  string
}

// Realtime is a streaming recognizer over the ElevenLabs realtime websocket.
// One connection serves many utterances; only the microphone is paused in
// between.
type Realtime struct {
	cfg    RealtimeConfig
	src    Source
	logger *slog.Logger
	dialer *websocket.Dialer

	mu        sync.Mutex
	ctx       context.Context
	conn      *websocket.Conn
	cb        session.RecognitionCallbacks
	bias      string
	recording bool
	recorded  []byte

	writeMu sync.Mutex
}

// NewRealtime returns a recognizer reading audio from src.
func NewRealtime(cfg RealtimeConfig, src Source, logger *slog.Logger) *Realtime {
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = defaultWSBaseURL
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = defaultSTTModel
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Realtime{
		cfg:    cfg,
		src:    src,
		logger: logger,
		dialer: websocket.DefaultDialer,
		ctx:    context.Background(),
	}
}

type serverMessage struct {
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
	Error       string `json:"error"`
}

type audioChunk struct {
	MessageType string `json:"message_type"`
	Audio       string `json:"audio_base_64"`
	Commit      bool   `json:"commit"`
	SampleRate  int    `json:"sample_rate"`
}

func (r *Realtime) endpoint() (string, error) {
	u, err := url.Parse(strings.TrimRight(r.cfg.WSBaseURL, "/") + "/v1/speech-to-text/realtime")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model_id", r.cfg.ModelID)
	q.Set("audio_format", "pcm_16000")
	q.Set("commit_strategy", "vad")
	if r.cfg.Language != "" {
		q.Set("language_code", r.cfg.Language)
	}
	r.mu.Lock()
	bias := r.bias
	r.mu.Unlock()
	if bias != "" {
		q.Set("keyterms", bias)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// StartSession dials the recognizer. A running session is replaced.
func (r *Realtime) StartSession(ctx context.Context, cb session.RecognitionCallbacks) error {
	endpoint, err := r.endpoint()
	if err != nil {
		return fmt.Errorf("stt endpoint: %w", err)
	}
	headers := http.Header{}
	headers.Set("xi-api-key", r.cfg.APIKey)
	conn, resp, err := r.dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial stt websocket: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial stt websocket: %w", err)
	}

	r.StopSession()
	r.mu.Lock()
	r.ctx = ctx
	r.conn = conn
	r.cb = cb
	r.mu.Unlock()
	r.logger.Debug("stt session open", "model", r.cfg.ModelID)
	go r.readLoop(conn, cb)
	return nil
}

// StopSession closes the connection. No disconnect callback is sent.
func (r *Realtime) StopSession() {
	r.src.Stop()
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()
	if conn != nil {
		// Best-effort close.
		_ = conn.Close()
	}
}

func (r *Realtime) readLoop(conn *websocket.Conn, cb session.RecognitionCallbacks) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.mu.Lock()
			current := r.conn == conn
			if current {
				r.conn = nil
			}
			r.mu.Unlock()
			if current {
				r.src.Stop()
				// Best-effort close.
				_ = conn.Close()
				call(cb.OnDisconnect, err)
			}
			return
		}
		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			r.logger.Debug("stt message ignored", "err", err)
			continue
		}
		switch msg.MessageType {
		case "partial_transcript":
			call(cb.OnPartial, msg.Text)
		case "committed_transcript", "committed_transcript_with_timestamps":
			call(cb.OnCommitted, msg.Text)
		case "session_started":
			if cb.OnSessionStarted != nil {
				cb.OnSessionStarted()
			}
		case "":
		default:
			detail := msg.Error
			if detail == "" {
				detail = string(data)
			}
			call(cb.OnError, fmt.Errorf("stt %s: %s", msg.MessageType, detail))
		}
	}
}

func call[T any](f func(T), v T) {
	if f != nil {
		f(v)
	}
}

// StartListening starts the microphone and streams it to the recognizer.
func (r *Realtime) StartListening() error {
	r.mu.Lock()
	conn, ctx := r.conn, r.ctx
	r.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return r.src.Start(ctx, func(chunk []byte) { r.onChunk(conn, chunk) })
}

// PauseListening stops the microphone and commits what was sent.
func (r *Realtime) PauseListening() {
	r.src.Stop()
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return
	}
	if err := r.send(conn, audioChunk{MessageType: "input_audio_chunk", Commit: true, SampleRate: audio.SampleRate}); err != nil {
		r.logger.Debug("stt commit failed", "err", err)
	}
}

func (r *Realtime) onChunk(conn *websocket.Conn, chunk []byte) {
	level := audio.Level(chunk)
	r.mu.Lock()
	if r.recording {
		r.recorded = append(r.recorded, chunk...)
	}
	onLevel := r.cb.OnAudioLevel
	r.mu.Unlock()
	call(onLevel, level)

	msg := audioChunk{
		MessageType: "input_audio_chunk",
		Audio:       base64.StdEncoding.EncodeToString(chunk),
		SampleRate:  audio.SampleRate,
	}
	if err := r.send(conn, msg); err != nil {
		r.logger.Debug("stt send failed", "err", err)
	}
}

func (r *Realtime) send(conn *websocket.Conn, msg audioChunk) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// StartRecording keeps a copy of the audio sent from now on.
func (r *Realtime) StartRecording() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = true
	r.recorded = nil
}

// StopRecording returns the audio kept since StartRecording.
func (r *Realtime) StopRecording() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	pcm := r.recorded
	r.recorded = nil
	return pcm
}

// UpdatePrompt sets the key terms sent when the next session is opened.
func (r *Realtime) UpdatePrompt(bias string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bias = bias
}

var _ session.Recognizer = (*Realtime)(nil)
