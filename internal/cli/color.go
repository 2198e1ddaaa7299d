package cli

import "github.com/charmbracelet/lipgloss"

// ANSI 256 colors for broad terminal compatibility.
var (
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleCode    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	stylePipe    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	stylePath    = lipgloss.NewStyle().Bold(true)
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleAccent  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

func render(style lipgloss.Style, s string) string {
	if !EnableColors() {
		return s
	}
	return style.Render(s)
}

// Error returns text styled as an error label.
func Error(s string) string { return render(styleError, s) }

// Warning returns text styled as a warning label.
func Warning(s string) string { return render(styleWarning, s) }

// Help returns text styled as a help label.
func Help(s string) string { return render(styleHelp, s) }

// Success returns text styled as a success message.
func Success(s string) string { return render(styleSuccess, s) }

// Code returns an error code such as E1001.
func Code(s string) string { return render(styleCode, s) }

// Pipe returns the gutter separator.
func Pipe() string { return render(stylePipe, "|") }

// FilePath returns a styled path.
func FilePath(s string) string { return render(stylePath, s) }

// Dim returns de-emphasized text.
func Dim(s string) string { return render(styleDim, s) }

// Accent returns highlighted text such as a dialect name.
func Accent(s string) string { return render(styleAccent, s) }
