package appsweep

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/appsweep/pkg/history"
	"github.com/arthur-debert/appsweep/pkg/homebrew"
	"github.com/arthur-debert/appsweep/pkg/schedule"
	"github.com/arthur-debert/appsweep/pkg/types"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	sourceStyles = map[types.Source]lipgloss.Style{
		types.SourceHomebrew: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		types.SourceAppStore: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		types.SourceSparkle:  lipgloss.NewStyle().Foreground(lipgloss.Color("170")),
	}
)

func validateFormat(format string) error {
	switch format {
	case FormatTable, FormatJSON, FormatYAML:
		return nil
	}
	return fmt.Errorf(MsgErrFormat, format)
}

// updateRow is the serialized form of an available update.
type updateRow struct {
	ID         string       `json:"id" yaml:"id"`
	Name       string       `json:"name" yaml:"name"`
	Source     types.Source `json:"source" yaml:"source"`
	Installed  string       `json:"installed" yaml:"installed"`
	Available  string       `json:"available" yaml:"available"`
	Path       string       `json:"path,omitempty" yaml:"path,omitempty"`
	CaskToken  string       `json:"cask,omitempty" yaml:"cask,omitempty"`
	ProductID  string       `json:"product_id,omitempty" yaml:"product_id,omitempty"`
	PreRelease bool         `json:"prerelease,omitempty" yaml:"prerelease,omitempty"`
	NotesURL   string       `json:"notes_url,omitempty" yaml:"notes_url,omitempty"`
	Status     string       `json:"status,omitempty" yaml:"status,omitempty"`
}

func toRow(u types.UpdateableApp) updateRow {
	name := u.App.Name
	if name == "" {
		name = u.ID
	}
	row := updateRow{
		ID:         u.ID,
		Name:       name,
		Source:     u.Source,
		Installed:  u.App.Version,
		Available:  u.DisplayVersion(),
		Path:       u.App.Path,
		CaskToken:  u.CaskToken,
		ProductID:  u.ProductID,
		PreRelease: u.IsPreRelease,
		NotesURL:   u.Release.NotesURL,
	}
	if u.Status.State == types.StatusFailed {
		row.Status = "failed: " + u.Status.FailureMessage
	}
	return row
}

// flatten lists updates in source priority order.
func flatten(result map[types.Source][]types.UpdateableApp, only types.Source) []types.UpdateableApp {
	var out []types.UpdateableApp
	for _, src := range types.Sources {
		if only != "" && src != only {
			continue
		}
		out = append(out, result[src]...)
	}
	return out
}

func printUpdates(w io.Writer, updates []types.UpdateableApp, format string, notes bool) error {
	rows := make([]updateRow, 0, len(updates))
	for _, u := range updates {
		rows = append(rows, toRow(u))
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, MsgNoUpdates)
		return nil
	}

	fmt.Fprintf(w, MsgUpdatesFound, len(rows))
	t := newTable("App", "Installed", "Available", "Source", "ID")
	for _, r := range rows {
		available := r.Available
		if r.PreRelease {
			available += " " + warnStyle.Render("(pre-release)")
		}
		t.Row(r.Name, r.Installed, available, sourceStyles[r.Source].Render(string(r.Source)), dimStyle.Render(r.ID))
	}
	fmt.Fprintln(w, t.Render())

	if notes {
		for _, u := range updates {
			if md := releaseMarkdown(u); md != "" {
				fmt.Fprint(w, renderMarkdown(w, md))
			}
		}
	}
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderColumn(false).
		BorderRow(false).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// releaseMarkdown renders the release details of u, or "" when it has
// none.
func releaseMarkdown(u types.UpdateableApp) string {
	r := u.Release
	if r.Title == "" && r.Description == "" && r.NotesURL == "" {
		return ""
	}

	var b strings.Builder
	title := r.Title
	if title == "" {
		title = u.App.Name + " " + u.DisplayVersion()
	}
	fmt.Fprintf(&b, "## %s\n\n", title)
	if !r.Date.IsZero() {
		fmt.Fprintf(&b, "_%s_\n\n", r.Date.Format("2 Jan 2006"))
	}
	if r.Description != "" {
		b.WriteString(strings.TrimSpace(r.Description))
		b.WriteString("\n\n")
	}
	if r.NotesURL != "" {
		fmt.Fprintf(&b, "[Release notes](%s)\n", r.NotesURL)
	}
	return b.String()
}

// renderMarkdown styles md with glamour on terminals and passes it
// through otherwise.
func renderMarkdown(w io.Writer, md string) string {
	if !useColor(w) {
		return md + "\n"
	}
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return md + "\n"
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md + "\n"
	}
	return out
}

func printAdoptable(w io.Writer, casks []homebrew.AdoptableCask) {
	t := newTable("Token", "Name", "Version", "Score", "Auto-updates", "Matches installed")
	for _, c := range casks {
		compatible := errorStyle.Render("no")
		if c.IsVersionCompatible {
			compatible = successStyle.Render("yes")
		}
		t.Row(c.Token, c.DisplayName, c.Version, fmt.Sprint(c.MatchScore), yesNo(c.AutoUpdates), compatible)
	}
	fmt.Fprintln(w, t.Render())
}

func printHistory(w io.Writer, entries []history.Entry) {
	t := newTable("When", "App", "Source", "Version", "Outcome", "Took")
	for _, e := range entries {
		outcome := string(e.Outcome)
		switch e.Outcome {
		case history.OutcomeSucceeded:
			outcome = successStyle.Render(outcome)
		case history.OutcomeFailed:
			outcome = errorStyle.Render(outcome) + " " + dimStyle.Render(e.Message)
		}
		name := e.Name
		if name == "" {
			name = e.AppID
		}
		t.Row(
			e.FinishedAt.Local().Format("2006-01-02 15:04"),
			name,
			sourceStyles[e.Source].Render(string(e.Source)),
			e.FromVersion+" → "+e.ToVersion,
			outcome,
			e.Duration().Round(time.Second).String(),
		)
	}
	fmt.Fprintln(w, t.Render())
}

func printOccurrences(w io.Writer, occs []schedule.Occurrence) {
	t := newTable("When", "Enabled", "ID")
	for _, o := range occs {
		enabled := dimStyle.Render("no")
		if o.Enabled {
			enabled = successStyle.Render("yes")
		}
		t.Row(o.String(), enabled, dimStyle.Render(o.ID))
	}
	fmt.Fprintln(w, t.Render())
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
