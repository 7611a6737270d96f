package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ReemX/pnpm-airgap/internal/publish"
)

// DefaultMaxFailures caps how many failures the rendered summary lists
// before collapsing the rest into a count.
const DefaultMaxFailures = 10

// theme centralizes summary styling. Keeping the styles together makes
// it easy to keep success, skip, and failure lines visually consistent.
type theme struct {
	title   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	failed  lipgloss.Style
	dim     lipgloss.Style
	heading lipgloss.Style
}

func defaultTheme() theme {
	return theme{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")),
		ok:      lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		heading: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#61AFEF")),
	}
}

// RenderOptions tunes summary rendering.
type RenderOptions struct {
	// MaxFailures caps the listed failures. Zero means DefaultMaxFailures.
	MaxFailures int
	// NoColor disables styling, for logs and non-TTY output.
	NoColor bool
}

// Render produces the human-readable run summary.
func Render(r *Report, opts RenderOptions) string {
	maxFailures := opts.MaxFailures
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	th := defaultTheme()
	if opts.NoColor {
		th = theme{}
	}

	var b strings.Builder

	title := "Publish run " + r.RunID
	if r.DryRun {
		title += " (dry run)"
	}
	b.WriteString(th.title.Render(title))
	b.WriteString("\n")
	b.WriteString(th.dim.Render(fmt.Sprintf("registry %s, duration %s",
		r.RegistryURL, r.FinishedAt.Sub(r.StartedAt).Round(10*time.Millisecond))))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s  %s  %s\n",
		th.ok.Render(fmt.Sprintf("published %d", r.Totals.Published)),
		th.warn.Render(fmt.Sprintf("skipped %d", r.Totals.Skipped)),
		th.failed.Render(fmt.Sprintf("failed %d", r.Totals.Failed))))
	if r.Totals.Recovered > 0 {
		b.WriteString(th.dim.Render(fmt.Sprintf("(%d recovered by reconciliation)", r.Totals.Recovered)))
		b.WriteString("\n")
	}

	failures := r.Failures()
	if len(failures) > 0 {
		b.WriteString("\n")
		b.WriteString(th.heading.Render("Failures"))
		b.WriteString("\n")
		for i, o := range failures {
			if i == maxFailures {
				b.WriteString(th.dim.Render(fmt.Sprintf("  ... and %d more", len(failures)-maxFailures)))
				b.WriteString("\n")
				break
			}
			b.WriteString(fmt.Sprintf("  %s %s\n",
				th.failed.Render(o.Identity.Key()), failureDetail(o)))
		}
	}

	return b.String()
}

// failureDetail builds the one-line explanation for a failed artifact.
func failureDetail(o publish.Outcome) string {
	detail := o.ErrorDetail
	if detail == "" {
		detail = "unknown error"
	}
	return fmt.Sprintf("(%d attempts) %s", o.AttemptCount, detail)
}
