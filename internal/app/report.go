package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nhle/mailpdf/internal/model"
	"github.com/nhle/mailpdf/internal/sync"
	"github.com/nhle/mailpdf/internal/theme"
)

// RenderCycle writes a short summary of a poll cycle.
func RenderCycle(w io.Writer, r *sync.CycleResult) error {
	var b strings.Builder
	outcome := r.Outcome()
	fmt.Fprintf(&b, "%s %s\n",
		theme.HeaderStyle.Render("cycle "+r.ID),
		theme.OutcomeStyle(outcome).Render(outcome))
	fmt.Fprintf(&b, "listed %d  processed %d  skipped %d  failed %d  mark-read failures %d  (%s)\n",
		r.Listed, r.Processed, r.Skipped, r.Failed, r.MarkReadFailures, r.Duration.Round(time.Millisecond))
	for _, f := range r.Files {
		fmt.Fprintf(&b, "  %s\n", f)
	}
	for _, err := range r.Errors {
		fmt.Fprintf(&b, "  %s\n", theme.OutcomeStyle("failed").Render(err.Error()))
	}
	if r.Err != nil {
		fmt.Fprintf(&b, "%s\n", theme.OutcomeStyle("failed").Render(r.Err.Error()))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderHistory writes ledger rows, newest first.
func RenderHistory(w io.Writer, downloads []model.Download) error {
	if len(downloads) == 0 {
		_, err := fmt.Fprintln(w, theme.HelpStyle.Render("no downloads recorded"))
		return err
	}

	var b strings.Builder
	for _, d := range downloads {
		state := "unread"
		if d.MarkedReadAt != nil {
			state = "read"
		}
		fmt.Fprintf(&b, "%s  %-6s  %8d  %s  %s\n",
			d.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			theme.OutcomeStyle(state).Render(state),
			d.Size, d.Path,
			theme.HelpStyle.Render(d.MessageID))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
