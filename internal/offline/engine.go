// Package offline produces a rule-based advisory when the online analyzer is
// unavailable. Analyze is pure: the same input always yields the same text.
package offline

import "strings"

// Section headings shared with the online prompt so the report parser can split
// both kinds of answers the same way.
const (
	HeadingSymptoms    = "### อาการที่ตรวจพบ"
	HeadingAdvice      = "### คำแนะนำเบื้องต้น"
	HeadingPrecautions = "### ข้อควรระวัง"
)

// Precautions is identical for every group.
const Precautions = "- หากอาการไม่ดีขึ้นหรือแย่ลงภายใน 24-48 ชั่วโมง ควรไปพบแพทย์\n" +
	"- หากมีอาการอันตราย เช่น เจ็บหน้าอก หายใจลำบาก ชัก หมดสติ ไข้สูงไม่ลด หรือปวดรุนแรงเฉียบพลัน **ให้รีบไปโรงพยาบาลทันที** หรือโทร 1669\n" +
	"- ผลการประเมินนี้เป็นข้อมูลเบื้องต้นจากระบบออฟไลน์ ไม่สามารถใช้แทนการวินิจฉัยของแพทย์ได้"

// Group is one keyword bucket with its fixed advisory text.
type Group struct {
	ID       string
	Keywords []string
	Symptoms string
	Advice   string
}

// groups is evaluated in order and the first match wins; the catch-all must stay last.
var groups = []Group{
	{
		ID:       "head",
		Keywords: []string{"ปวดหัว", "ปวดศีรษะ", "เวียนหัว", "เวียนศีรษะ", "มึนหัว", "บ้านหมุน", "ไมเกรน", "headache", "migraine", "dizzy", "dizziness"},
		Symptoms: "อาการปวดศีรษะหรือเวียนศีรษะ อาจเกิดจากความเครียด การพักผ่อนไม่เพียงพอ ภาวะขาดน้ำ ความดันโลหิตผิดปกติ หรือไมเกรน",
		Advice: "- นอนพักในห้องที่มืดและเงียบ หลีกเลี่ยงแสงจ้าและเสียงดัง\n" +
			"- ดื่มน้ำให้เพียงพอ และพักสายตาจากหน้าจอ\n" +
			"- รับประทานยาพาราเซตามอลตามขนาดที่ระบุบนฉลากได้หากจำเป็น\n" +
			"- หากเวียนศีรษะ ให้นั่งหรือนอนลงทันทีเพื่อป้องกันการหกล้ม",
	},
	{
		ID:       "stomach",
		Keywords: []string{"ปวดท้อง", "ท้องเสีย", "ท้องร่วง", "ถ่ายเหลว", "คลื่นไส้", "อาเจียน", "ท้องอืด", "จุกเสียด", "แสบท้อง", "stomach", "diarrhea", "nausea", "vomit"},
		Symptoms: "อาการผิดปกติของระบบทางเดินอาหาร เช่น ปวดท้อง ท้องเสีย คลื่นไส้ หรืออาเจียน อาจเกิดจากอาหารเป็นพิษ การติดเชื้อ หรือกรดไหลย้อน",
		Advice: "- จิบน้ำเกลือแร่ (ORS) บ่อย ๆ เพื่อป้องกันภาวะขาดน้ำ\n" +
			"- รับประทานอาหารอ่อน ย่อยง่าย เช่น ข้าวต้ม โจ๊ก งดอาหารรสจัดและของมัน\n" +
			"- หลีกเลี่ยงเครื่องดื่มที่มีคาเฟอีนและแอลกอฮอล์\n" +
			"- ล้างมือให้สะอาดก่อนรับประทานอาหารและหลังเข้าห้องน้ำ",
	},
	{
		ID:       "fever",
		Keywords: []string{"ไข้", "ตัวร้อน", "หนาวสั่น", "ครั่นเนื้อครั่นตัว", "fever", "chills"},
		Symptoms: "อาการไข้หรือตัวร้อน มักเป็นสัญญาณว่าร่างกายกำลังต่อสู้กับการติดเชื้อ เช่น ไข้หวัด ไข้หวัดใหญ่ หรือการติดเชื้ออื่น ๆ",
		Advice: "- เช็ดตัวด้วยน้ำอุ่นเพื่อช่วยลดไข้\n" +
			"- ดื่มน้ำมาก ๆ และพักผ่อนให้เพียงพอ\n" +
			"- รับประทานยาพาราเซตามอลตามขนาดที่ระบุบนฉลากเพื่อลดไข้\n" +
			"- วัดอุณหภูมิร่างกายเป็นระยะ และสวมเสื้อผ้าที่ระบายอากาศได้ดี",
	},
	{
		ID:       "respiratory",
		Keywords: []string{"ไอ", "เจ็บคอ", "น้ำมูก", "คัดจมูก", "จาม", "หายใจ", "เสมหะ", "หอบ", "cough", "sore throat", "runny nose", "breath"},
		Symptoms: "อาการของระบบทางเดินหายใจ เช่น ไอ เจ็บคอ มีน้ำมูก หรือคัดจมูก อาจเกิดจากหวัด ภูมิแพ้ หรือการติดเชื้อทางเดินหายใจ",
		Advice: "- ดื่มน้ำอุ่นบ่อย ๆ และกลั้วคอด้วยน้ำเกลือ\n" +
			"- พักผ่อนให้เพียงพอ หลีกเลี่ยงฝุ่น ควัน และอากาศเย็นจัด\n" +
			"- สวมหน้ากากอนามัยเพื่อป้องกันการแพร่เชื้อสู่ผู้อื่น\n" +
			"- หากมีอาการหายใจลำบากหรือหอบเหนื่อย ต้องรีบพบแพทย์",
	},
	{
		ID:       "skin",
		Keywords: []string{"ผื่น", "คัน", "ลมพิษ", "ผิวหนัง", "ตุ่ม", "แพ้", "rash", "itch", "hives"},
		Symptoms: "อาการทางผิวหนัง เช่น ผื่น คัน หรือลมพิษ อาจเกิดจากการแพ้ การระคายเคือง หรือการติดเชื้อที่ผิวหนัง",
		Advice: "- หลีกเลี่ยงการเกาบริเวณที่มีผื่น เพื่อป้องกันการติดเชื้อ\n" +
			"- ประคบเย็นหรือทาคาลาไมน์เพื่อบรรเทาอาการคัน\n" +
			"- สังเกตและหลีกเลี่ยงสิ่งที่อาจเป็นสาเหตุของการแพ้ เช่น อาหาร ยา หรือสารเคมี\n" +
			"- สวมเสื้อผ้าหลวม ระบายอากาศได้ดี",
	},
	{
		ID:       "musculoskeletal",
		Keywords: []string{"ปวดหลัง", "ปวดเมื่อย", "ปวดข้อ", "ปวดกล้ามเนื้อ", "ปวดคอ", "ปวดไหล่", "ปวดเข่า", "เคล็ด", "back pain", "joint pain", "muscle"},
		Symptoms: "อาการปวดกล้ามเนื้อ กระดูก หรือข้อต่อ อาจเกิดจากการใช้งานหนัก ท่าทางไม่เหมาะสม การบาดเจ็บ หรือการอักเสบ",
		Advice: "- พักการใช้งานบริเวณที่ปวด หลีกเลี่ยงการยกของหนัก\n" +
			"- ประคบเย็นใน 48 ชั่วโมงแรกหากมีการบาดเจ็บ จากนั้นจึงประคบร้อน\n" +
			"- ยืดเหยียดกล้ามเนื้อเบา ๆ และปรับท่าทางการนั่งทำงานให้เหมาะสม\n" +
			"- รับประทานยาบรรเทาปวดตามขนาดที่ระบุบนฉลากได้หากจำเป็น",
	},
	{
		ID:       "general",
		Keywords: nil,
		Symptoms: "อาการอ่อนเพลียหรือไม่สบายทั่วไป อาจเกิดจากการพักผ่อนไม่เพียงพอ ความเครียด ภาวะขาดน้ำ หรือภาวะโภชนาการไม่สมดุล",
		Advice: "- พักผ่อนให้เพียงพอ วันละ 7-8 ชั่วโมง\n" +
			"- ดื่มน้ำให้ได้อย่างน้อยวันละ 8 แก้ว\n" +
			"- รับประทานอาหารให้ครบ 5 หมู่ และออกกำลังกายเบา ๆ สม่ำเสมอ\n" +
			"- สังเกตอาการของตนเองอย่างต่อเนื่อง และจดบันทึกอาการที่เปลี่ยนแปลง",
	},
}

// Match returns the first group whose keyword appears in text. The catch-all
// group is returned when nothing else matches.
func Match(text string) Group {
	lower := strings.ToLower(text)
	for _, g := range groups {
		if len(g.Keywords) == 0 {
			return g
		}
		for _, kw := range g.Keywords {
			if strings.Contains(lower, kw) {
				return g
			}
		}
	}
	return groups[len(groups)-1]
}

// Analyze formats the advisory for text as three ### sections: detected
// symptoms, advice, precautions. Callers must not pass empty input.
func Analyze(text string) string {
	g := Match(text)
	var b strings.Builder
	b.WriteString(HeadingSymptoms)
	b.WriteString("\n")
	b.WriteString(g.Symptoms)
	b.WriteString("\n\n")
	b.WriteString(HeadingAdvice)
	b.WriteString("\n")
	b.WriteString(g.Advice)
	b.WriteString("\n\n")
	b.WriteString(HeadingPrecautions)
	b.WriteString("\n")
	b.WriteString(Precautions)
	return b.String()
}

// Groups returns the ordered group IDs.
func Groups() []string {
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	return ids
}
