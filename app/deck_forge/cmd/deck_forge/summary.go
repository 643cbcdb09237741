package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

var (
	colorPrimary = lipgloss.Color("#2563EB")
	colorSuccess = lipgloss.Color("#10B981")
	colorWarn    = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
	cellStyle = lipgloss.NewStyle().Width(10)
)

func statusStyle(s model.StageStatus) lipgloss.Style {
	switch s {
	case model.StatusOK:
		return cellStyle.Foreground(colorSuccess)
	case model.StatusDegraded:
		return cellStyle.Foreground(colorWarn)
	case model.StatusFailed:
		return cellStyle.Foreground(colorError)
	}
	return cellStyle.Foreground(colorMuted)
}

// printSummary 终端输出质量报告摘要
func printSummary(w io.Writer, deck *model.Deck, report *model.QualityReport, elapsed time.Duration, out string) {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(deck.Meta.Topic))
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("%d slides • %s • %s", len(deck.Slides), deck.Meta.Language, elapsed.Round(time.Millisecond))))
	sb.WriteString("\n\n")

	sb.WriteString(cellStyle.Bold(true).Render("stage"))
	sb.WriteString(cellStyle.Bold(true).Render("status"))
	sb.WriteString(cellStyle.Bold(true).Render("applied"))
	sb.WriteString(cellStyle.Bold(true).Render("cache"))
	sb.WriteString("\n")
	for _, s := range report.Stages {
		cache := "miss"
		if s.CacheHit {
			cache = "hit"
		}
		sb.WriteString(cellStyle.Render(string(s.Stage)))
		sb.WriteString(statusStyle(s.Status).Render(string(s.Status)))
		sb.WriteString(cellStyle.Render(fmt.Sprintf("%d/%d", s.Applied, s.Attempted)))
		sb.WriteString(cellStyle.Render(cache))
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\nconfidence %.2f • text score %.2f\n", report.AverageConfidence, report.TextScore))
	if rejected := report.RejectedSlides(); len(rejected) > 0 {
		sb.WriteString(lipgloss.NewStyle().Foreground(colorWarn).Render(fmt.Sprintf("rejected refinements on slides %v", rejected)))
		sb.WriteString("\n")
	}
	for _, d := range report.Degraded {
		sb.WriteString(lipgloss.NewStyle().Foreground(colorWarn).Render(fmt.Sprintf("%s: %s", d.Stage, d.Message)))
		sb.WriteString("\n")
	}
	sb.WriteString(mutedStyle.Render("→ " + out))

	fmt.Fprintln(w, boxStyle.Render(sb.String()))
}
