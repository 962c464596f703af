// Package script loads scene files.
package script

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/cueline/internal/matcher"
	"github.com/verte-zerg/cueline/internal/model"
)

// ErrUnknownCharacter is returned when the requested part has no lines.
var ErrUnknownCharacter = errors.New("character not found in scene")

// File is the on-disk scene format.
//
// Example:
//
//	title: Kitchen, night
//	characters:
//	  - name: ANNA
//	    voice: 21m00Tcm4TlvDq8ikWAM
//	lines:
//	  - character: ANNA
//	    text: Where were you last night?
//	  - type: action
//	    text: He turns away.
//	  - character: BEN
//	    text: I never said that. (quietly) Not once.
//	    segments: ["I never said that.", "Not once."]
type File struct {
	ID         string         `yaml:"id"`
	Title      string         `yaml:"title"`
	Characters []CharacterDef `yaml:"characters"`
	Lines      []LineDef      `yaml:"lines"`
}

// CharacterDef names a part and the voice that reads it.
type CharacterDef struct {
	Name  string `yaml:"name"`
	Voice string `yaml:"voice"`
}

// LineDef is one entry of the lines list. Type defaults to dialogue.
type LineDef struct {
	ID            string   `yaml:"id"`
	Character     string   `yaml:"character"`
	Text          string   `yaml:"text"`
	Type          string   `yaml:"type"`
	Parenthetical string   `yaml:"parenthetical"`
	Segments      []string `yaml:"segments"`
}

// Load reads and parses a scene file.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene %q: %w", path, err)
	}
	defer f.Close()

	sf, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("parse scene %q: %w", path, err)
	}
	return sf, nil
}

// Decode parses a scene from r. Unknown keys are rejected.
func Decode(r io.Reader) (*File, error) {
	var sf File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("decode scene yaml: %w", err)
	}
	if err := sf.validate(); err != nil {
		return nil, err
	}
	return &sf, nil
}

func (f *File) validate() error {
	if len(f.Lines) == 0 {
		return errors.New("scene has no lines")
	}
	seen := map[string]struct{}{}
	for i, l := range f.Lines {
		t, ok := model.ParseLineType(l.Type)
		if !ok {
			return fmt.Errorf("line %d: unknown type %q", i+1, l.Type)
		}
		if strings.TrimSpace(l.Text) == "" {
			return fmt.Errorf("line %d: empty text", i+1)
		}
		if t == model.LineDialogue && strings.TrimSpace(l.Character) == "" {
			return fmt.Errorf("line %d: dialogue without character", i+1)
		}
		if l.ID == "" {
			continue
		}
		if _, dup := seen[l.ID]; dup {
			return fmt.Errorf("line %d: duplicate id %q", i+1, l.ID)
		}
		seen[l.ID] = struct{}{}
	}
	return nil
}

// Speakers returns the characters with dialogue, in order of first line.
func (f *File) Speakers() []string {
	var out []string
	seen := map[string]struct{}{}
	for _, l := range f.Lines {
		name := strings.TrimSpace(l.Character)
		if name == "" {
			continue
		}
		key := strings.ToUpper(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Scene converts the file into a rehearsal scene with user playing as.
func (f *File) Scene(as string) (model.Scene, error) {
	user := ""
	for _, name := range f.Speakers() {
		if strings.EqualFold(name, strings.TrimSpace(as)) {
			user = name
		}
	}
	if user == "" {
		return model.Scene{}, fmt.Errorf("%w: %q (have %s)", ErrUnknownCharacter, as, strings.Join(f.Speakers(), ", "))
	}

	scene := model.Scene{
		ID:            f.sceneID(),
		Title:         f.Title,
		UserCharacter: user,
	}
	for _, c := range f.Characters {
		scene.Characters = append(scene.Characters, model.Character{Name: c.Name, Voice: c.Voice})
	}
	for i, l := range f.Lines {
		t, _ := model.ParseLineType(l.Type)
		id := l.ID
		if id == "" {
			id = fmt.Sprintf("l%d", i+1)
		}
		name := strings.TrimSpace(l.Character)
		if t != model.LineDialogue {
			name = ""
		}
		scene.Lines = append(scene.Lines, model.Line{
			ID:               id,
			CharacterName:    name,
			Content:          strings.TrimSpace(l.Text),
			IsUserLine:       t == model.LineDialogue && strings.EqualFold(name, user),
			LineType:         t,
			Parenthetical:    l.Parenthetical,
			SortOrder:        i,
			PracticeSegments: l.Segments,
		})
	}
	scene.BiasTokens = BiasTokens(f.Speakers(), scene.Lines)
	return scene, nil
}

func (f *File) sceneID() string {
	if f.ID != "" {
		return f.ID
	}
	if s := Slug(f.Title); s != "" {
		return s
	}
	return "scene"
}

// Slug lowercases s and joins its letters and digits with dashes.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}

// BiasTokens collects words a recognizer is likely to mishear: character
// names and capitalized words that do not start a sentence.
func BiasTokens(names []string, lines []model.Line) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(w string) {
		key := strings.ToLower(w)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, w)
	}
	for _, n := range names {
		for _, w := range strings.Fields(n) {
			add(titleCase(w))
		}
	}
	for _, l := range lines {
		if l.IsDirection() {
			continue
		}
		sentenceStart := true
		for _, raw := range strings.Fields(matcher.StripParentheticals(l.Content)) {
			w := strings.TrimFunc(raw, func(r rune) bool { return !unicode.IsLetter(r) })
			if w != "" && !sentenceStart && isProperNoun(w) {
				add(w)
			}
			sentenceStart = strings.ContainsAny(raw[len(raw)-1:], ".!?")
		}
	}
	return out
}

func isProperNoun(w string) bool {
	r := []rune(w)
	if w == "I" || strings.HasPrefix(w, "I'") || !unicode.IsUpper(r[0]) {
		return false
	}
	// All-caps words are shouting, not names.
	return len(r) == 1 || !unicode.IsUpper(r[1])
}

func titleCase(w string) string {
	r := []rune(strings.ToLower(w))
	if len(r) > 0 {
		r[0] = unicode.ToUpper(r[0])
	}
	return string(r)
}
