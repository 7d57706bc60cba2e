package speech

import (
	"strings"
	"unicode"
)

// MaxChunkRunes bounds a single utterance; some engines truncate longer input.
const MaxChunkRunes = 150

// Chunk splits sanitized text into utterances: one per line, with lines longer
// than max split at the last whitespace that fits, or hard split when a window
// has none.
func Chunk(text string, max int) []string {
	if max <= 0 {
		max = MaxChunkRunes
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		out = append(out, chunkLine([]rune(strings.TrimSpace(line)), max)...)
	}
	return out
}

func chunkLine(r []rune, max int) []string {
	var out []string
	for len(r) > max {
		cut := -1
		for i := max; i > 0; i-- {
			if unicode.IsSpace(r[i]) {
				cut = i
				break
			}
		}
		if cut < 0 {
			out = appendChunk(out, r[:max])
			r = r[max:]
			continue
		}
		out = appendChunk(out, r[:cut])
		r = r[cut+1:]
	}
	return appendChunk(out, r)
}

func appendChunk(out []string, r []rune) []string {
	if s := strings.TrimSpace(string(r)); s != "" {
		out = append(out, s)
	}
	return out
}
