package offline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeAlwaysHasThreeOrderedSections(t *testing.T) {
	inputs := []string{
		"ปวดหัว เวียนหัว",
		"ท้องเสียตั้งแต่เมื่อวาน",
		"มีไข้ตัวร้อน",
		"ไอมาก เจ็บคอ",
		"มีผื่นขึ้นตามแขน",
		"ปวดหลังหลังยกของ",
		"รู้สึกไม่ค่อยสบาย",
		"x",
	}
	for _, in := range inputs {
		out := Analyze(in)
		require.Equal(t, 3, strings.Count(out, "### "), "input %q", in)

		iSym := strings.Index(out, HeadingSymptoms)
		iAdv := strings.Index(out, HeadingAdvice)
		iPre := strings.Index(out, HeadingPrecautions)
		require.True(t, iSym == 0 && iSym < iAdv && iAdv < iPre, "sections out of order for %q", in)

		tail := out[iPre+len(HeadingPrecautions)+1:]
		assert.Equal(t, Precautions, tail, "precautions must not depend on input %q", in)
	}
}

func TestAnalyzeHeadacheScenario(t *testing.T) {
	out := Analyze("ปวดหัว เวียนหัว")
	sym := out[:strings.Index(out, HeadingAdvice)]
	adv := out[strings.Index(out, HeadingAdvice):strings.Index(out, HeadingPrecautions)]

	assert.Contains(t, sym, "ปวดศีรษะ")
	assert.Contains(t, sym, "เวียนศีรษะ")
	assert.Contains(t, adv, "ห้องที่มืดและเงียบ")
}

func TestMatchFirstGroupWins(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ปวดหัวและปวดท้อง", "head"},
		{"ปวดท้องและมีไข้", "stomach"},
		{"มีไข้ ไอ เจ็บคอ", "fever"},
		{"ไอแล้วมีผื่น", "respiratory"},
		{"ผื่นคันและปวดเมื่อย", "skin"},
		{"ปวดหลังมาก", "musculoskeletal"},
		{"SEVERE HEADACHE", "head"},
		{"เหนื่อยง่าย", "general"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Match(tc.in).ID, "Match(%q)", tc.in)
	}
}

func TestGroupsOrder(t *testing.T) {
	assert.Equal(t, []string{"head", "stomach", "fever", "respiratory", "skin", "musculoskeletal", "general"}, Groups())
}
