package wordlist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsKeyTerm(t *testing.T) {
	for _, term := range []string{"Marco", "O'Neill", "Saint-Exupéry", "Dr. Rank", "Zoë"} {
		if !IsKeyTerm(term) {
			t.Fatalf("expected %q to be a key term", term)
		}
	}
	for _, term := range []string{"", "42", "a/b", "-", strings.Repeat("a", 51)} {
		if IsKeyTerm(term) {
			t.Fatalf("expected %q to be rejected", term)
		}
	}
}

func TestMerge(t *testing.T) {
	got := Merge([]string{"Anna", "Ben"}, []string{"anna", "  Marco   Polo ", "3pm", "Verona"}, 0)
	want := "Anna,Ben,Marco Polo,Verona"
	if strings.Join(got, ",") != want {
		t.Fatalf("expected %s, got %v", want, got)
	}
	if capped := Merge([]string{"Anna", "Ben"}, []string{"Marco"}, 2); len(capped) != 2 || capped[1] != "Ben" {
		t.Fatalf("expected base terms kept under the cap, got %v", capped)
	}
}

func TestLoadWords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.txt")
	data := "# people\nMarco\n\n  Verona \n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	words, err := LoadWords(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(words) != 2 || words[0] != "Marco" || words[1] != "Verona" {
		t.Fatalf("unexpected words %v", words)
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(empty, []byte("# nothing\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadWords(empty); err == nil {
		t.Fatalf("expected error for empty list")
	}
}
