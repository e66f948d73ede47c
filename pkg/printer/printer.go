// Package printer renders an oxerrors.Diagnostics report as a standalone
// lipgloss panel, the same bordered style pkg/ui's Reporter uses but
// packaged so an embedding host can get OX's diagnostic formatting
// without constructing a full CLI Reporter session.
package printer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
)

var (
	colorError   = lipgloss.Color("#FF6B9D")
	colorWarning = lipgloss.Color("#F7DC6F")
	colorMuted   = lipgloss.Color("#6C7086")
	colorBorder  = lipgloss.Color("#45475A")

	styleError  = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleWarn   = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleMuted  = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	stylePanel  = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1)
)

// Panel renders diags as a bordered text panel: every error, then every
// warning, each tagged with its kind and source location, and a trailing
// "clean" line when diags holds nothing. It is the single place OX's
// diagnostic text formatting lives; pkg/ui's Reporter delegates to it
// rather than duplicating the per-line styling.
func Panel(diags *oxerrors.Diagnostics) string {
	errs := diags.Errors()
	warns := diags.Warnings()

	if len(errs) == 0 && len(warns) == 0 {
		return stylePanel.Render(styleMuted.Render("no diagnostics"))
	}

	var sb strings.Builder
	for i, e := range errs {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s %s: %s", styleError.Render("✗ "+e.Kind.String()), e.Loc.String(), e.Message)
	}
	for i, w := range warns {
		if len(errs) > 0 || i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s %s: %s", styleWarn.Render("⚠ "+w.Kind.String()), w.Loc.String(), w.Message)
	}
	return stylePanel.Render(sb.String())
}
