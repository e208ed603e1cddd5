package fancy

import (
	"github.com/charmbracelet/lipgloss"
)

// Common styles that can be used across the application
var (
	RootStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	BranchStyle = lipgloss.NewStyle().
			Foreground(ColorDarkGray)

	ComponentStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	PluginStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	ExperimentStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	DimensionStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta)

	ScriptStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)
)

// PluginText styles a plugin name
func PluginText(text string) string {
	return PluginStyle.Render(text)
}

// ExperimentText styles an experiment id
func ExperimentText(text string) string {
	return ExperimentStyle.Render(text)
}

// DimensionText styles a dimension name
func DimensionText(text string) string {
	return DimensionStyle.Render(text)
}

// ScriptText styles script source summaries
func ScriptText(text string) string {
	return ScriptStyle.Render(text)
}

// Validation-specific styling functions

// ValidText styles valid status text (green)
func ValidText(text string) string {
	return ScriptStyle.Render(text)
}

// ErrorText styles error text (red)
func ErrorText(text string) string {
	return ErrorStyle.Render(text)
}

// PathText styles file paths (gray)
func PathText(text string) string {
	return InfoStyle.Render(text)
}

// SummaryText styles summary information (dark gray)
func SummaryText(text string) string {
	return BranchStyle.Render(text)
}

// CountText styles count numbers (cyan)
func CountText(text string) string {
	return ComponentStyle.Render(text)
}
