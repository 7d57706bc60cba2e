package speech

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	speechURLPattern          = regexp.MustCompile(`https?://\S+`)
	speechFencedCodePattern   = regexp.MustCompile("(?s)```.*?```")
	speechInlineCodePattern   = regexp.MustCompile("`[^`]*`")
	speechMarkdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	speechBulletPattern       = regexp.MustCompile(`^[-+•]\s+`)
)

var markupReplacer = strings.NewReplacer(
	"*", " ",
	"_", " ",
	"\\", " ",
	"|", " ",
	"#", " ",
	"~", " ",
	"<", " ",
	">", " ",
)

// Sanitize strips markup and symbol noise so synthesized speech sounds natural.
// Line breaks survive; whitespace inside a line collapses to single spaces and
// blank lines are dropped.
func Sanitize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = speechFencedCodePattern.ReplaceAllString(raw, " ")
	raw = speechInlineCodePattern.ReplaceAllString(raw, " ")
	raw = speechMarkdownLinkPattern.ReplaceAllString(raw, "$1")
	raw = speechURLPattern.ReplaceAllString(raw, " ")

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = speechBulletPattern.ReplaceAllString(strings.TrimSpace(line), "")
		if line = sanitizeLine(markupReplacer.Replace(line)); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func sanitizeLine(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	prevSpace := true

	for _, r := range line {
		switch {
		case r == '\u200d' || r == '\ufe0f' || r == '\u20e3':
			continue
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
			continue
		case isSpeechSafePunctuation(r):
			b.WriteRune(r)
			prevSpace = false
		case unicode.IsPunct(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

func isSpeechSafePunctuation(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ':', ';', '\'', '"', '-', '(', ')', '/', '%':
		return true
	default:
		return false
	}
}
