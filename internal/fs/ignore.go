package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ignorePattern is a parsed ignore pattern.
type ignorePattern struct {
	glob   string // lower-cased
	negate bool   // "!pattern" re-includes a name excluded by an earlier pattern
}

// IgnoreMatcher decides which files of a synced directory are left out.
// Only direct children are synced, so patterns match the file name alone.
// Matching is case-insensitive: cameras write IMG_0001.JPG and phones
// img_0001.jpg into the same library. Later patterns override earlier ones.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines, lines starting with '#' and malformed globs are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		p := ignorePattern{}
		if strings.HasPrefix(raw, "!") {
			p.negate = true
			raw = raw[1:]
		}
		p.glob = strings.ToLower(raw)
		if _, err := filepath.Match(p.glob, ""); err != nil {
			continue
		}
		patterns = append(patterns, p)
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the file name should be ignored.
func (m *IgnoreMatcher) Match(name string) bool {
	if name == "" {
		return false
	}
	name = strings.ToLower(name)

	ignored := false
	for _, p := range m.patterns {
		if ok, _ := filepath.Match(p.glob, name); ok {
			ignored = !p.negate
		}
	}
	return ignored
}

// ParseIgnoreFile reads a .photosyncignore file and returns the raw lines.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
