// Package report splits analyzer output into its three sections and renders
// the minimal markup (bullets, bold) analyzers emit.
package report

import (
	"regexp"
	"strings"
)

// Analysis is one complete assessment. It is replaced wholesale by each run.
type Analysis struct {
	Symptoms    string `json:"symptoms"`
	Advice      string `json:"advice"`
	Precautions string `json:"precautions"`
}

// Empty reports whether no section carries text.
func (a Analysis) Empty() bool {
	return strings.TrimSpace(a.Symptoms) == "" &&
		strings.TrimSpace(a.Advice) == "" &&
		strings.TrimSpace(a.Precautions) == ""
}

// Markdown writes the analysis back as three ### sections, skipping empty ones.
func (a Analysis) Markdown() string {
	var b strings.Builder
	for _, sec := range []struct{ heading, body string }{
		{"### อาการที่ตรวจพบ", a.Symptoms},
		{"### คำแนะนำเบื้องต้น", a.Advice},
		{"### ข้อควรระวัง", a.Precautions},
	} {
		body := strings.TrimSpace(sec.body)
		if body == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(sec.heading)
		b.WriteString("\n")
		b.WriteString(body)
	}
	return b.String()
}

type sectionKind int

const (
	sectionNone sectionKind = iota
	sectionSymptoms
	sectionAdvice
	sectionPrecautions
)

var headingPattern = regexp.MustCompile(`(?m)^[ \t]*#{2,3}[ \t]*(.*)$`)

// Heading prefixes, checked after stripping emphasis markers and numbering.
var sectionPrefixes = []struct {
	kind     sectionKind
	prefixes []string
}{
	{sectionPrecautions, []string{"ข้อควรระวัง", "precaution", "warning"}},
	{sectionAdvice, []string{"คำแนะนำ", "advice", "recommendation"}},
	{sectionSymptoms, []string{"อาการ", "symptom"}},
}

func classifyHeading(title string) sectionKind {
	title = strings.TrimLeft(title, "*_ \t0123456789.)")
	title = strings.ToLower(title)
	for _, sp := range sectionPrefixes {
		for _, p := range sp.prefixes {
			if strings.HasPrefix(title, p) {
				return sp.kind
			}
		}
	}
	return sectionNone
}

type marker struct {
	kind      sectionKind
	start     int // heading line start
	bodyStart int // first byte after the heading line
}

// Parse extracts the three sections. A section's body runs from its marker to
// the next marker or the end of text; a missing marker leaves the field empty.
// When every field ends up empty the whole text lands in Symptoms.
func Parse(text string) Analysis {
	var markers []marker
	for _, loc := range headingPattern.FindAllStringSubmatchIndex(text, -1) {
		kind := classifyHeading(text[loc[2]:loc[3]])
		if kind == sectionNone {
			continue
		}
		markers = append(markers, marker{kind: kind, start: loc[0], bodyStart: loc[1]})
	}

	var out Analysis
	seen := make(map[sectionKind]bool, 3)
	for i, m := range markers {
		if seen[m.kind] {
			continue
		}
		seen[m.kind] = true
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1].start
		}
		body := strings.TrimSpace(text[m.bodyStart:end])
		switch m.kind {
		case sectionSymptoms:
			out.Symptoms = body
		case sectionAdvice:
			out.Advice = body
		case sectionPrecautions:
			out.Precautions = body
		}
	}

	if out.Empty() {
		return Analysis{Symptoms: strings.TrimSpace(text)}
	}
	return out
}
