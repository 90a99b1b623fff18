package appsweep

import (
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// useColor reports whether styled output should be written to w.
func useColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || !isTerminal(w) {
		return false
	}
	return termenv.ColorProfile() != termenv.Ascii
}

// setupColor makes lipgloss render plain text when w cannot show color.
func setupColor(w io.Writer) {
	if !useColor(w) {
		lipgloss.SetColorProfile(termenv.Ascii)
		pterm.DisableStyling()
	}
}

// formatBold returns the string formatted as bold using pterm
func formatBold(s string) string {
	if !isTerminal(os.Stdout) {
		return s
	}
	return pterm.Bold.Sprint(s)
}

// formatBoldUpper returns the string in uppercase and bold
func formatBoldUpper(s string) string {
	return formatBold(strings.ToUpper(s))
}

// initTemplateFormatting adds custom formatting functions to Cobra templates
func initTemplateFormatting() {
	cobra.AddTemplateFuncs(template.FuncMap{
		"bold":      formatBold,
		"upper":     strings.ToUpper,
		"boldUpper": formatBoldUpper,
	})
}
