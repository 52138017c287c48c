package main

import (
	"fmt"
	"io"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/kr/pretty"

	"github.com/vito/ripple/pkg/ripple"
)

var (
	resultStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	triggerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	stepKindStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
)

func printResult(w io.Writer, cfg *Config, result ripple.Result) {
	prefix := ""
	if result.Trigger != nil {
		prefix = triggerStyle.Render(result.Trigger.Definition().Name) + " "
	}
	steps := dimStyle.Render(fmt.Sprintf("(%d steps)", result.Steps))
	if cfg.Dump {
		fmt.Fprintf(w, "%s%s %s\n", prefix, pretty.Sprint(result.Value), steps)
		return
	}
	fmt.Fprintf(w, "%s%s %s\n", prefix, renderValue(result.Value), steps)
}

func renderValue(v ripple.Value) string {
	if exc, ok := v.(*ripple.Exception); ok {
		return errorStyle.Render(fmt.Sprintf("%s: %s", exc.Kind, exc.Message))
	}
	return resultStyle.Render(fmt.Sprint(v))
}

// printConflicts reports p's conflicts with source excerpts, returning how
// many there were.
func printConflicts(w io.Writer, p *ripple.Program) int {
	conflicts := p.Conflicts()
	for _, c := range conflicts {
		fmt.Fprintln(w, warningStyle.Render("conflict:"), c.Error(p.Source.Text).FormatWithHighlighting())
	}
	return len(conflicts)
}

func printTrace(w io.Writer, trace []ripple.TraceEntry, width int) {
	for _, entry := range trace {
		line := entry.String()
		if width > 0 {
			line = ansi.Truncate(line, width, "…")
		}
		fmt.Fprintf(w, "%s %s\n", stepKindStyle.Render(fmt.Sprintf("%-8s", entry.Step.Kind)), line)
	}
}
