package playback

import (
	"regexp"
	"strings"
)

// Assistant replies arrive as markdown. Synthesis engines read markup
// characters aloud ("asterisk asterisk hola"), so emphasis, code and
// heading markers are stripped and structural breaks are converted to
// sentence-ending punctuation, which both backends render as pauses.

var (
	codeFenceRe = regexp.MustCompile("(?s)```.*?```")
	inlineRe    = regexp.MustCompile("[*_`~]+")
	headingRe   = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	bulletRe    = regexp.MustCompile(`(?m)^\s*(?:[-*+•]|\d+[.)])\s+`)
	linkRe      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	spaceRe     = regexp.MustCompile(`[ \t]+`)
)

// Normalize conditions markdown text for speech synthesis: code fences
// are dropped, emphasis/heading/bullet markers removed, links reduced
// to their label, and line breaks collapsed into sentence boundaries.
// Normalize is idempotent: applying it twice yields the same result.
func Normalize(text string) string {
	s := codeFenceRe.ReplaceAllString(text, " ")
	s = linkRe.ReplaceAllString(s, "$1")
	s = headingRe.ReplaceAllString(s, "")
	s = bulletRe.ReplaceAllString(s, "")
	s = inlineRe.ReplaceAllString(s, "")

	// Line breaks become sentence boundaries so speech pauses naturally.
	lines := strings.Split(s, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.ContainsAny(line[len(line)-1:], ".!?…:;,") {
			line += "."
		}
		parts = append(parts, line)
	}

	s = strings.Join(parts, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
