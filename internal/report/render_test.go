package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBlocks(t *testing.T) {
	text := "อาการ **ปวดหัว** รุนแรง\n\n- พักผ่อน\n* ดื่ม **น้ำ**\n\nย่อหน้าถัดไป\n- ใหม่"
	blocks := Render(text)
	require.Len(t, blocks, 4)

	assert.Equal(t, BlockParagraph, blocks[0].Kind)
	assert.Equal(t, []Span{{Text: "อาการ "}, {Text: "ปวดหัว", Bold: true}, {Text: " รุนแรง"}}, blocks[0].Spans)

	assert.Equal(t, BlockList, blocks[1].Kind)
	require.Len(t, blocks[1].Items, 2)
	assert.Equal(t, []Span{{Text: "พักผ่อน"}}, blocks[1].Items[0])
	assert.Equal(t, []Span{{Text: "ดื่ม "}, {Text: "น้ำ", Bold: true}}, blocks[1].Items[1])

	assert.Equal(t, BlockParagraph, blocks[2].Kind)
	assert.Equal(t, BlockList, blocks[3].Kind)
}

func TestRenderLineStartingWithBoldIsParagraph(t *testing.T) {
	blocks := Render("**สำคัญ** โปรดอ่าน")
	require.Len(t, blocks, 1)
	assert.Equal(t, BlockParagraph, blocks[0].Kind)
	assert.True(t, blocks[0].Spans[0].Bold)
}

func TestRenderEmpty(t *testing.T) {
	assert.Empty(t, Render("\n  \n"))
}

func TestHTMLEscapes(t *testing.T) {
	html := HTML(Render("a <b> **c&d**\n- item"))
	assert.Equal(t, "<p>a &lt;b&gt; <strong>c&amp;d</strong></p><ul><li>item</li></ul>", html)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "หัวข้อ\n- หนึ่ง\n- สอง", PlainText(Render("หัวข้อ\n- หนึ่ง\n-   สอง")))
}
