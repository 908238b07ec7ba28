// Package song turns raw captured page text into structured (title, artist)
// observations.
package song

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// UnknownArtist is the sentinel used when the artist cannot be resolved.
const UnknownArtist = "Unknown"

// Song is a normalized musical observation.
type Song struct {
	Title  string
	Artist string
}

// separators are checked in order; the first occurrence wins.
var separators = []string{" - ", " – ", " — ", " | "}

// bareTimeRe matches a bare HH:MM token, which is timeline noise rather
// than a song title.
var bareTimeRe = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// defaultMarkers match whole lines that carry relative-time or liveness
// chrome instead of song text. Station pages are Brazilian Portuguese or
// English, so both vocabularies are covered.
var defaultMarkers = []string{
	`^live$`,
	`^ao vivo$`,
	`^agora$`,
	`^now$`,
	`^now playing$`,
	`^tocando agora$`,
	`^\d+\s*(min|mins|minutos?|minutes?)(\s+(ago|atr[aá]s))?$`,
	`^\d+\s*h(oras?)?(\s+(ago|atr[aá]s))?$`,
	`^h[aá]\s+\d+\s*(min|minutos?|h|horas?)$`,
}

// Normalizer extracts a Song from free-form captured text.
type Normalizer struct {
	markers []*regexp.Regexp
}

// NewNormalizer builds a normalizer with the default marker vocabulary plus
// any extra marker patterns from configuration.
func NewNormalizer(extra ...string) (*Normalizer, error) {
	patterns := make([]string, 0, len(defaultMarkers)+len(extra))
	patterns = append(patterns, defaultMarkers...)
	patterns = append(patterns, extra...)

	markers := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("compile marker %q: %w", p, err)
		}
		markers = append(markers, re)
	}
	return &Normalizer{markers: markers}, nil
}

// Normalize parses raw text into a Song. It is total: the worst case is the
// trimmed input as title with an unknown artist. Rule order is fixed —
// line-pair first, separator split second, fallback last — because
// reordering changes output for ambiguous inputs.
func (n *Normalizer) Normalize(raw string) Song {
	lines := n.cleanLines(raw)

	working := strings.TrimSpace(raw)
	if len(lines) > 0 {
		working = lines[0]
	}

	// Rule: two cleaned lines are a title/artist pair, unless the second
	// line is a timestamp or too short to be a name.
	if len(lines) >= 2 {
		artist := lines[1]
		if !bareTimeRe.MatchString(artist) && utf8.RuneCountInString(artist) > 1 {
			return Song{Title: lines[0], Artist: artist}
		}
	}

	// Rule: single line with a known separator reads as "artist <sep> title".
	for _, sep := range separators {
		idx := strings.Index(working, sep)
		if idx < 0 {
			continue
		}
		artist := strings.TrimSpace(working[:idx])
		title := strings.TrimSpace(working[idx+len(sep):])
		if utf8.RuneCountInString(artist) <= 1 || utf8.RuneCountInString(title) <= 1 {
			continue
		}
		return Song{Title: title, Artist: artist}
	}

	return Song{Title: working, Artist: UnknownArtist}
}

// cleanLines splits raw into trimmed non-empty lines with marker lines
// removed.
func (n *Normalizer) cleanLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || n.isMarker(line) {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func (n *Normalizer) isMarker(line string) bool {
	for _, re := range n.markers {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Acceptable reports whether a normalized Song is a real observation rather
// than timeline noise. Callers drop rejected songs instead of storing them.
func Acceptable(s Song) bool {
	title := strings.TrimSpace(s.Title)
	if bareTimeRe.MatchString(title) {
		return false
	}
	if utf8.RuneCountInString(title) < 2 {
		return false
	}
	if s.Artist == UnknownArtist && utf8.RuneCountInString(title) < 4 {
		return false
	}
	return true
}
