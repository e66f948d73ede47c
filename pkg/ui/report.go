// Package ui renders OX diagnostics and build summaries using lipgloss,
// adapted from the teacher's build-banner renderer to OX's own output
// shape: a file header, one timed processing stage, a diagnostics panel
// (errors and warnings, each with its source location), and a final
// summary line.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/the-ox-studio/oxdef-sub002/pkg/ast"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/printer"
)

var (
	colorPrimary   = lipgloss.Color("#7D56F4")
	colorSecondary = lipgloss.Color("#56C3F4")
	colorSuccess   = lipgloss.Color("#5AF78E")
	colorWarning   = lipgloss.Color("#F7DC6F")
	colorError     = lipgloss.Color("#FF6B9D")
	colorMuted     = lipgloss.Color("#6C7086")
	colorHighlight = lipgloss.Color("#F5E0DC")
	colorBorder    = lipgloss.Color("#45475A")
)

var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 2).
			MarginBottom(1)

	styleFilePath = lipgloss.NewStyle().Foreground(colorHighlight).Bold(true)
	styleMuted    = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	styleSuccess  = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleWarning  = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleError    = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleStepTime = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)

	styleSummary = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(colorBorder).
			MarginTop(1).
			PaddingTop(1)

	styleIndent = lipgloss.NewStyle().PaddingLeft(2)
)

// StageStatus is the outcome of one timed processing stage.
type StageStatus int

const (
	StageOK StageStatus = iota
	StageWarning
	StageError
)

// Reporter renders one CLI invocation's output: a file header, the single
// "Process" stage (project.Project.Run, timed by the caller), any
// collected diagnostics, and a closing summary.
type Reporter struct {
	startTime time.Time
}

// NewReporter starts a Reporter's clock; PrintSummary reports elapsed
// time since this call.
func NewReporter() *Reporter {
	return &Reporter{startTime: time.Now()}
}

// PrintHeader prints the tool banner.
func (r *Reporter) PrintHeader(version string) {
	fmt.Println(styleHeader.Render("OX") + " " + styleMuted.Render("v"+version))
}

// PrintFileStart announces which file is about to be processed.
func (r *Reporter) PrintFileStart(path string) {
	fmt.Printf("  %s\n\n", styleFilePath.Render(path))
}

// PrintStage reports one stage's outcome and duration.
func (r *Reporter) PrintStage(name string, status StageStatus, dur time.Duration) {
	var icon, label string
	switch status {
	case StageOK:
		icon, label = "✓", styleSuccess.Render("Done")
	case StageWarning:
		icon, label = "⚠", styleWarning.Render("Warnings")
	case StageError:
		icon, label = "✗", styleError.Render("Failed")
	}
	fmt.Printf("  %s %-10s %s %s\n", icon, name, label, styleStepTime.Render("("+formatDuration(dur)+")"))
}

// PrintDiagnostics renders every collected error and warning, each tagged
// with its kind and source location, errors first. The panel formatting
// itself lives in pkg/printer so a non-CLI host can render the same
// output without a Reporter.
func (r *Reporter) PrintDiagnostics(diags *oxerrors.Diagnostics) {
	fmt.Println(styleIndent.Render(printer.Panel(diags)))
}

// PrintSummary prints the closing summary line: success/failure and the
// elapsed wall time since NewReporter.
func (r *Reporter) PrintSummary(success bool, errMsg string) {
	elapsed := time.Since(r.startTime)
	fmt.Println()

	var line string
	if success {
		line = fmt.Sprintf("%s Built in %s", styleSuccess.Render("Success"), styleStepTime.Render(formatDuration(elapsed)))
	} else {
		line = styleError.Render("Build failed")
		if errMsg != "" {
			line += "\n" + styleError.Render("   Error: ") + errMsg
		}
	}
	fmt.Println(styleSummary.Render(line))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// DumpDocument renders doc's node tree as an indented outline: every
// block's id, tags, resolved properties, and children, recursively. It is
// the backing renderer for `ox dump`.
func DumpDocument(doc *ast.Document) string {
	var sb strings.Builder
	for _, n := range doc.Children {
		dumpNode(&sb, n, 0)
	}
	return sb.String()
}

func dumpNode(sb *strings.Builder, n ast.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v := n.(type) {
	case *ast.Block:
		fmt.Fprintf(sb, "%s%s %s\n", indent, styleFilePath.Render(blockLabel(v)), tagSummary(v.Tags))
		if v.Properties != nil {
			for _, key := range v.Properties.Keys() {
				val, _ := v.Properties.Get(key)
				fmt.Fprintf(sb, "%s  %s: %s\n", indent, key, dumpValue(val))
			}
		}
		for _, child := range v.Children {
			dumpNode(sb, child, depth+1)
		}
	case *ast.FreeText:
		fmt.Fprintf(sb, "%s%s\n", indent, styleMuted.Render(fmt.Sprintf("<freetext %d bytes>", len(v.Value))))
	default:
		fmt.Fprintf(sb, "%s%s\n", indent, styleMuted.Render(fmt.Sprintf("<%T>", v)))
	}
}

func blockLabel(b *ast.Block) string {
	if b.ID == "" {
		return "[block]"
	}
	return "[" + b.ID + "]"
}

func tagSummary(tags []*ast.Tag) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, len(tags))
	for i, t := range tags {
		sigil := "@"
		if t.Kind == ast.TagInstance {
			sigil = "#"
		}
		parts[i] = sigil + t.Key()
	}
	return styleMuted.Render(strings.Join(parts, " "))
}

func dumpValue(v ast.Value) string {
	switch val := v.(type) {
	case *ast.Literal:
		return fmt.Sprintf("%v", val.Value)
	case *ast.Reference:
		return "<reference>"
	case *ast.Expression:
		return "<expression>"
	case *ast.Array:
		return fmt.Sprintf("<array len=%d>", len(val.Elements))
	default:
		return fmt.Sprintf("<%T>", val)
	}
}
