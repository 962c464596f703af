package speech

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verte-zerg/cueline/internal/audio"
	"github.com/verte-zerg/cueline/internal/model"
	"github.com/verte-zerg/cueline/internal/session"
)

type fakeSource struct {
	mu      sync.Mutex
	onChunk func([]byte)
	stops   int
}

func (s *fakeSource) Start(_ context.Context, onChunk func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChunk = onChunk
	return nil
}

func (s *fakeSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChunk = nil
	s.stops++
}

func (s *fakeSource) emit(chunk []byte) bool {
	s.mu.Lock()
	f := s.onChunk
	s.mu.Unlock()
	if f == nil {
		return false
	}
	f(chunk)
	return true
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestRealtimeStreamsAudioAndTranscripts(t *testing.T) {
	upgrader := websocket.Upgrader{}
	query := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "key" {
			http.Error(w, "no key", http.StatusUnauthorized)
			return
		}
		query <- r.URL.Query().Get("keyterms")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(map[string]string{"message_type": "session_started"})
		var chunk audioChunk
		if err := conn.ReadJSON(&chunk); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]string{"message_type": "partial_transcript", "text": "I never"})
		_ = conn.WriteJSON(map[string]string{"message_type": "committed_transcript", "text": "I never said that"})
		_ = conn.WriteJSON(map[string]string{"message_type": "quota_exceeded", "error": "out of credits"})
		// Wait for the client to close.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	src := &fakeSource{}
	rec := NewRealtime(RealtimeConfig{APIKey: "key", WSBaseURL: wsURL(srv)}, src, nil)
	rec.UpdatePrompt("Anna, Ben")

	events := make(chan string, 16)
	var levels sync.WaitGroup
	levels.Add(1)
	cb := session.RecognitionCallbacks{
		OnPartial:        func(s string) { events <- "partial:" + s },
		OnCommitted:      func(s string) { events <- "committed:" + s },
		OnSessionStarted: func() { events <- "started" },
		OnAudioLevel:     func(float64) { levels.Done() },
		OnError:          func(err error) { events <- "error" },
		OnDisconnect:     func(err error) { events <- "disconnect" },
	}
	if err := rec.StartSession(context.Background(), cb); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if got := <-query; got != "Anna, Ben" {
		t.Fatalf("expected key terms in query, got %q", got)
	}
	waitFor(t, events, "started")

	rec.StartRecording()
	if err := rec.StartListening(); err != nil {
		t.Fatalf("start listening: %v", err)
	}
	if !src.emit(make([]byte, 320)) {
		t.Fatalf("expected capture running")
	}
	levels.Wait()
	waitFor(t, events, "partial:I never")
	waitFor(t, events, "committed:I never said that")
	waitFor(t, events, "error")

	if pcm := rec.StopRecording(); len(pcm) != 320 {
		t.Fatalf("expected recorded chunk, got %d bytes", len(pcm))
	}
	rec.StopSession()
	select {
	case ev := <-events:
		t.Fatalf("unexpected event after stop: %q", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRealtimeReportsDisconnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	src := &fakeSource{}
	rec := NewRealtime(RealtimeConfig{WSBaseURL: wsURL(srv)}, src, nil)
	events := make(chan string, 4)
	err := rec.StartSession(context.Background(), session.RecognitionCallbacks{
		OnDisconnect: func(error) { events <- "disconnect" },
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	waitFor(t, events, "disconnect")
	if err := rec.StartListening(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestRealtimeDialError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	rec := NewRealtime(RealtimeConfig{WSBaseURL: wsURL(srv)}, &fakeSource{}, nil)
	err := rec.StartSession(context.Background(), session.RecognitionCallbacks{})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestTTSSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text-to-speech/voice-anna" {
			http.Error(w, "bad path "+r.URL.Path, http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("output_format") != "pcm_16000" {
			http.Error(w, "bad format", http.StatusBadRequest)
			return
		}
		var req ttsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text != "Fine." {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		_, _ = w.Write(make([]byte, 32000))
	}))
	defer srv.Close()

	tts := NewTTS(TTSConfig{APIKey: "key", BaseURL: srv.URL})
	clip, err := tts.Synthesize(context.Background(), "Fine.", "voice-anna")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if clip.Duration != time.Second {
		t.Fatalf("expected 1s clip, got %v", clip.Duration)
	}
	if tts.Voice("") != DefaultVoice {
		t.Fatalf("expected default voice")
	}
}

func TestTTSStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tts := NewTTS(TTSConfig{BaseURL: srv.URL})
	if _, err := tts.Synthesize(context.Background(), "hi", ""); err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

type countingSynth struct {
	mu    sync.Mutex
	calls map[string]int
	fail  string
}

func (s *countingSynth) Synthesize(_ context.Context, text, _ string) (audio.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[text]++
	if text == s.fail {
		return audio.Clip{}, errors.New("boom")
	}
	return audio.NewClip(make([]byte, 1600), audio.SampleRate), nil
}

func TestCacheHitsDisk(t *testing.T) {
	dir := t.TempDir()
	next := &countingSynth{}
	cache := NewCache(next, dir, "m1", nil)

	for i := 0; i < 2; i++ {
		clip, err := cache.Synthesize(context.Background(), "Fine.", "v")
		if err != nil {
			t.Fatalf("synthesize: %v", err)
		}
		if len(clip.PCM) != 1600 {
			t.Fatalf("unexpected clip size %d", len(clip.PCM))
		}
	}
	if next.calls["Fine."] != 1 {
		t.Fatalf("expected one upstream call, got %d", next.calls["Fine."])
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one cached file, got %d (%v)", len(entries), err)
	}
	if NewCache(next, dir, "m2", nil).Key("Fine.", "v") == cache.Key("Fine.", "v") {
		t.Fatalf("model must be part of the key")
	}
}

func TestPrefetch(t *testing.T) {
	scene := model.Scene{
		Characters: []model.Character{{Name: "ANNA", Voice: "a"}},
		Lines: []model.Line{
			{ID: "l1", CharacterName: "ANNA", Content: "Hello (smiles) there."},
			{ID: "l2", CharacterName: "BEN", Content: "Hi.", IsUserLine: true},
			{ID: "l3", Content: "A pause.", LineType: model.LineAction},
			{ID: "l4", CharacterName: "ANNA", Content: "Hello there."},
		},
	}
	reqs := Requests(scene, "narrator", false)
	want := []Request{{Text: "Hello there.", Voice: "a"}, {Text: "Hi.", Voice: "narrator"}}
	if len(reqs) != len(want) || reqs[0] != want[0] || reqs[1] != want[1] {
		t.Fatalf("unexpected requests %+v", reqs)
	}
	if got := Requests(scene, "narrator", true); len(got) != 3 {
		t.Fatalf("expected directions included, got %+v", got)
	}

	next := &countingSynth{fail: "Hi."}
	cache := NewCache(next, t.TempDir(), "m", nil)
	err := cache.Prefetch(context.Background(), Requests(scene, "narrator", true), 2)
	if err == nil || !strings.Contains(err.Error(), "Hi.") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if next.calls["A pause."] != 1 || next.calls["Hello there."] != 1 {
		t.Fatalf("expected the other requests to run, got %v", next.calls)
	}
}
