package script

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/verte-zerg/cueline/internal/model"
)

const kitchen = `title: Kitchen, night
characters:
  - name: ANNA
    voice: voice-anna
  - name: BEN
    voice: voice-ben
lines:
  - character: ANNA
    text: Where were you last night? I called Marco twice.
  - type: action
    text: Ben turns away.
  - character: BEN
    text: I never said that. (quietly) Not once.
    segments: ["I never said that.", "Not once."]
  - id: last
    character: ANNA
    text: Fine.
`

func TestSceneMarksUserLines(t *testing.T) {
	f, err := Decode(strings.NewReader(kitchen))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	scene, err := f.Scene("ben")
	if err != nil {
		t.Fatalf("scene: %v", err)
	}
	if scene.ID != "kitchen-night" || scene.UserCharacter != "BEN" {
		t.Fatalf("unexpected scene %q %q", scene.ID, scene.UserCharacter)
	}
	if len(scene.Lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(scene.Lines))
	}
	var users []string
	for _, l := range scene.Lines {
		if l.IsUserLine {
			users = append(users, l.ID)
		}
	}
	if !reflect.DeepEqual(users, []string{"l3"}) {
		t.Fatalf("unexpected user lines %v", users)
	}
	action := scene.Lines[1]
	if action.LineType != model.LineAction || action.CharacterName != "" || !action.IsDirection() {
		t.Fatalf("unexpected action line %+v", action)
	}
	if scene.Lines[3].ID != "last" {
		t.Fatalf("expected explicit id kept, got %q", scene.Lines[3].ID)
	}
	if len(scene.Lines[2].PracticeSegments) != 2 {
		t.Fatalf("expected curated segments")
	}
	if scene.VoiceFor("ANNA") != "voice-anna" {
		t.Fatalf("expected ANNA's voice")
	}
}

func TestBiasTokens(t *testing.T) {
	f, err := Decode(strings.NewReader(kitchen))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	scene, err := f.Scene("BEN")
	if err != nil {
		t.Fatalf("scene: %v", err)
	}
	want := []string{"Anna", "Ben", "Marco"}
	if !reflect.DeepEqual(scene.BiasTokens, want) {
		t.Fatalf("expected %v, got %v", want, scene.BiasTokens)
	}
}

func TestUnknownCharacter(t *testing.T) {
	f, err := Decode(strings.NewReader(kitchen))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := f.Scene("CLARA"); !errors.Is(err, ErrUnknownCharacter) {
		t.Fatalf("expected ErrUnknownCharacter, got %v", err)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "title: x\nlines:\n  - character: A\n    txt: hi\n",
		"no lines":     "title: x\n",
		"bad type":     "lines:\n  - type: song\n    text: la\n",
		"empty text":   "lines:\n  - character: A\n    text: \"  \"\n",
		"no character": "lines:\n  - text: hello\n",
		"duplicate id": "lines:\n  - {id: a, character: A, text: hi}\n  - {id: a, character: B, text: yo}\n",
	}
	for name, doc := range cases {
		if _, err := Decode(strings.NewReader(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := os.WriteFile(path, []byte(kitchen), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.Title != "Kitchen, night" {
		t.Fatalf("unexpected title %q", f.Title)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Kitchen, night":  "kitchen-night",
		"  Act 2 / Sc 1 ": "act-2-sc-1",
		"!!!":             "",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}
