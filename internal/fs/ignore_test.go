package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines, comments and bad globs", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.xmp", "[bad"})
		if len(m.patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(m.patterns))
		}
		if m.patterns[0].glob != "*.xmp" {
			t.Errorf("expected *.xmp, got %s", m.patterns[0].glob)
		}
	})

	t.Run("parses negation", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"*.jpg", "!keep.jpg"})
		if m.patterns[0].negate {
			t.Error("*.jpg should not be a negation")
		}
		if !m.patterns[1].negate || m.patterns[1].glob != "keep.jpg" {
			t.Errorf("second pattern = %+v, want negated keep.jpg", m.patterns[1])
		}
	})
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		file     string
		want     bool
	}{
		{
			name:     "extension glob matches",
			patterns: []string{"*.xmp"},
			file:     "IMG_0001.xmp",
			want:     true,
		},
		{
			name:     "extension glob does not match different extension",
			patterns: []string{"*.xmp"},
			file:     "IMG_0001.jpg",
			want:     false,
		},
		{
			name:     "matching is case-insensitive",
			patterns: []string{"*.aae"},
			file:     "IMG_0001.AAE",
			want:     true,
		},
		{
			name:     "upper-case pattern matches lower-case name",
			patterns: []string{"THUMBS.DB"},
			file:     "thumbs.db",
			want:     true,
		},
		{
			name:     "negation re-includes a file",
			patterns: []string{"*.jpg", "!keep.jpg"},
			file:     "keep.jpg",
			want:     false,
		},
		{
			name:     "negation leaves other matches ignored",
			patterns: []string{"*.jpg", "!keep.jpg"},
			file:     "drop.jpg",
			want:     true,
		},
		{
			name:     "later pattern overrides negation",
			patterns: []string{"!keep.jpg", "*.jpg"},
			file:     "keep.jpg",
			want:     true,
		},
		{
			name:     "question mark wildcard",
			patterns: []string{"?.png"},
			file:     "a.png",
			want:     true,
		},
		{
			name:     "question mark does not match multiple chars",
			patterns: []string{"?.png"},
			file:     "ab.png",
			want:     false,
		},
		{
			name:     "no patterns matches nothing",
			patterns: nil,
			file:     "anything.jpg",
			want:     false,
		},
		{
			name:     "empty name",
			patterns: []string{"*"},
			file:     "",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewIgnoreMatcher(tt.patterns)
			if got := m.Match(tt.file); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("reads lines from file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, IgnoreFileName)
		content := "*.xmp\n# sidecars\n\n*.aae\n!keep.aae\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}

		lines, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if len(lines) != 5 {
			t.Fatalf("expected 5 raw lines, got %d", len(lines))
		}

		m := NewIgnoreMatcher(lines)
		if len(m.patterns) != 3 {
			t.Errorf("expected 3 parsed patterns, got %d", len(m.patterns))
		}
	})

	t.Run("returns nil for missing file", func(t *testing.T) {
		t.Parallel()
		lines, err := ParseIgnoreFile(filepath.Join(t.TempDir(), IgnoreFileName))
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if lines != nil {
			t.Errorf("expected nil lines, got %v", lines)
		}
	})
}
