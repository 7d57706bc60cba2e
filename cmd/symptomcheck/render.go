package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ent0n29/symptomcheck/internal/analysis"
	"github.com/ent0n29/symptomcheck/internal/report"
)

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0EA5E9"))

	boldStyle = lipgloss.NewStyle().Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#334155")).
			Padding(0, 1)
)

var sectionTitles = []string{"อาการที่ตรวจพบ", "คำแนะนำเบื้องต้น", "ข้อควรระวัง"}

func renderOutcome(out analysis.Outcome) string {
	sections := []string{out.Result.Symptoms, out.Result.Advice, out.Result.Precautions}

	var parts []string
	for i, body := range sections {
		if strings.TrimSpace(body) == "" {
			continue
		}
		parts = append(parts, headingStyle.Render(sectionTitles[i])+"\n"+renderBlocks(report.Render(body)))
	}
	if len(parts) == 0 {
		parts = append(parts, renderBlocks(report.Render(out.Raw)))
	}

	footer := dimStyle.Render(fmt.Sprintf("source: %s  reason: %s  %dms", out.Source, out.Reason, out.Duration.Milliseconds()))
	if out.Source == analysis.SourceOffline {
		footer = warnStyle.Render("ผลวิเคราะห์แบบออฟไลน์") + "  " + footer
	}
	return panelStyle.Render(strings.Join(parts, "\n\n")) + "\n" + footer
}

func renderBlocks(blocks []report.Block) string {
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case report.BlockList:
			for _, item := range b.Items {
				lines = append(lines, "• "+renderSpans(item))
			}
		default:
			lines = append(lines, renderSpans(b.Spans))
		}
	}
	return strings.Join(lines, "\n")
}

func renderSpans(spans []report.Span) string {
	var sb strings.Builder
	for _, s := range spans {
		if s.Bold {
			sb.WriteString(boldStyle.Render(s.Text))
			continue
		}
		sb.WriteString(s.Text)
	}
	return sb.String()
}
