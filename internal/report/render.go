package report

import (
	"html"
	"regexp"
	"strings"
)

type BlockKind string

const (
	BlockParagraph BlockKind = "paragraph"
	BlockList      BlockKind = "list"
)

// Span is a run of inline text, optionally bold.
type Span struct {
	Text string `json:"text"`
	Bold bool   `json:"bold,omitempty"`
}

// Block is a paragraph (Spans) or a bullet list (Items).
type Block struct {
	Kind  BlockKind `json:"kind"`
	Spans []Span    `json:"spans,omitempty"`
	Items [][]Span  `json:"items,omitempty"`
}

var (
	bulletPattern = regexp.MustCompile(`^\s*[-*]\s+(.*)$`)
	boldPattern   = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// Render converts section text into blocks. Bullet lines start or continue a
// list; other non-blank lines become paragraphs; blank lines only separate.
func Render(text string) []Block {
	var (
		blocks []Block
		list   *Block
	)
	flush := func() {
		if list != nil {
			blocks = append(blocks, *list)
			list = nil
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			if list == nil {
				list = &Block{Kind: BlockList}
			}
			list.Items = append(list.Items, ParseInline(strings.TrimSpace(m[1])))
			continue
		}
		flush()
		blocks = append(blocks, Block{Kind: BlockParagraph, Spans: ParseInline(strings.TrimSpace(line))})
	}
	flush()
	return blocks
}

// ParseInline splits a line into plain and **bold** spans.
func ParseInline(line string) []Span {
	var spans []Span
	last := 0
	for _, loc := range boldPattern.FindAllStringSubmatchIndex(line, -1) {
		if loc[0] > last {
			spans = append(spans, Span{Text: line[last:loc[0]]})
		}
		spans = append(spans, Span{Text: line[loc[2]:loc[3]], Bold: true})
		last = loc[1]
	}
	if last < len(line) {
		spans = append(spans, Span{Text: line[last:]})
	}
	return spans
}

// HTML renders blocks as escaped markup for web clients.
func HTML(blocks []Block) string {
	var b strings.Builder
	for _, blk := range blocks {
		switch blk.Kind {
		case BlockList:
			b.WriteString("<ul>")
			for _, item := range blk.Items {
				b.WriteString("<li>")
				writeSpans(&b, item)
				b.WriteString("</li>")
			}
			b.WriteString("</ul>")
		default:
			b.WriteString("<p>")
			writeSpans(&b, blk.Spans)
			b.WriteString("</p>")
		}
	}
	return b.String()
}

func writeSpans(b *strings.Builder, spans []Span) {
	for _, s := range spans {
		if s.Bold {
			b.WriteString("<strong>")
			b.WriteString(html.EscapeString(s.Text))
			b.WriteString("</strong>")
			continue
		}
		b.WriteString(html.EscapeString(s.Text))
	}
}

// PlainText flattens blocks back to readable lines, bullets prefixed with "- ".
func PlainText(blocks []Block) string {
	var lines []string
	for _, blk := range blocks {
		if blk.Kind == BlockList {
			for _, item := range blk.Items {
				lines = append(lines, "- "+joinSpans(item))
			}
			continue
		}
		lines = append(lines, joinSpans(blk.Spans))
	}
	return strings.Join(lines, "\n")
}

func joinSpans(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}
