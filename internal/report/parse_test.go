package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRecoversSections(t *testing.T) {
	cases := []struct {
		name string
		a    string
		b    string
		c    string
	}{
		{"thai", "### อาการที่ตรวจพบ", "### คำแนะนำเบื้องต้น", "### ข้อควรระวัง"},
		{"english", "### Symptoms", "### Advice", "### Precautions"},
		{"bold numbered", "### **1. อาการ**", "## 2) คำแนะนำ", "### ข้อควรระวังสำคัญ"},
	}
	s1, s2, s3 := "  ปวดหัวมาก\nเป็นมา 2 วัน ", "- พักผ่อน\n- ดื่มน้ำ", "ถ้าแย่ลงให้พบแพทย์\n"
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text := tc.a + "\n" + s1 + "\n" + tc.b + "\n" + s2 + "\n" + tc.c + "\n" + s3
			got := Parse(text)
			assert.Equal(t, "ปวดหัวมาก\nเป็นมา 2 วัน", got.Symptoms)
			assert.Equal(t, "- พักผ่อน\n- ดื่มน้ำ", got.Advice)
			assert.Equal(t, "ถ้าแย่ลงให้พบแพทย์", got.Precautions)
		})
	}
}

func TestParseNoMarkersFallsBackToSymptoms(t *testing.T) {
	got := Parse("plain text, no markers")
	assert.Equal(t, Analysis{Symptoms: "plain text, no markers"}, got)
}

func TestParseMissingMarkerLeavesFieldEmpty(t *testing.T) {
	got := Parse("intro\n### คำแนะนำ\nพักผ่อน\n### ข้อควรระวัง\nระวัง")
	assert.Equal(t, "", got.Symptoms)
	assert.Equal(t, "พักผ่อน", got.Advice)
	assert.Equal(t, "ระวัง", got.Precautions)
}

func TestParseOutOfOrderSections(t *testing.T) {
	got := Parse("### Precautions\nP\n### Symptoms\nS\n### Advice\nA")
	assert.Equal(t, Analysis{Symptoms: "S", Advice: "A", Precautions: "P"}, got)
}

func TestParseUnknownHeadingStaysInBody(t *testing.T) {
	got := Parse("### อาการ\nS\n### หมายเหตุ\nN\n### คำแนะนำ\nA")
	assert.Equal(t, "S\n### หมายเหตุ\nN", got.Symptoms)
	assert.Equal(t, "A", got.Advice)
}

func TestParseMarkersWithEmptyBodiesKeepsText(t *testing.T) {
	text := "### อาการ\n### คำแนะนำ\n### ข้อควรระวัง"
	got := Parse(text)
	assert.Equal(t, text, got.Symptoms)
}

func TestMarkdownParsesBack(t *testing.T) {
	a := Analysis{Symptoms: "ไข้สูง", Advice: "- ดื่มน้ำ", Precautions: "ถ้าไข้ไม่ลดให้พบแพทย์"}
	assert.Equal(t, a, Parse(a.Markdown()))

	partial := Analysis{Advice: "พักผ่อน"}
	assert.Equal(t, "### คำแนะนำเบื้องต้น\nพักผ่อน", partial.Markdown())
	assert.Empty(t, Analysis{}.Markdown())
}
