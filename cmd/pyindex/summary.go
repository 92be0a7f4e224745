package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"pyindexer/internal/core/app"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Width(12)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#334155")).
			Padding(0, 1)
)

func renderSummary(res app.Result, mode, target string) string {
	rows := []struct {
		label string
		value string
	}{
		{"Run", res.RunID},
		{"Mode", mode},
		{"Index", target},
		{"Files", fmt.Sprintf("%d", res.Files)},
		{"Symbols", fmt.Sprintf("%d", res.Symbols)},
		{"References", fmt.Sprintf("%d", res.References)},
		{"Unsolved", fmt.Sprintf("%d", res.Unsolved)},
		{"Errors", fmt.Sprintf("%d", res.Errors)},
		{"Duration", res.Duration.Round(time.Millisecond).String()},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("pyindex summary"))
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString(labelStyle.Render(r.label))
		b.WriteString(r.value)
		b.WriteString("\n")
	}
	if res.Failed > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("%d file(s) could not be parsed", res.Failed)))
	} else {
		b.WriteString(successStyle.Render("all files indexed"))
	}
	return boxStyle.Render(b.String()) + "\n"
}
