package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pterm/pterm"

	"github.com/cruciblehq/cruxpkg/internal/protocol"
)

func init() {
	if !isatty(os.Stdout) {
		pterm.DisableColor()
	}
}

// Renders the outcome of a build as a table, followed by the error of every
// target that did not succeed.
func renderResult(w io.Writer, res *protocol.BuildResult) error {
	data := [][]string{{"TARGET", "OS", "FORMAT", "STATE", "PHASE", "ENTRIES", "DURATION"}}
	for _, t := range res.Targets {
		data = append(data, []string{
			t.Image,
			t.OS,
			t.Format,
			t.State,
			t.Phase,
			strconv.Itoa(t.Entries),
			t.Duration,
		})
	}

	if err := renderTable(w, data); err != nil {
		return err
	}

	for _, t := range res.Failed() {
		if _, err := fmt.Fprintf(w, "\n%s: %s\n", t.Image, t.Error); err != nil {
			return fmt.Errorf("printing to out stream: %w", err)
		}
	}
	return nil
}

// Renders the daemon status as a two-column table.
func renderStatus(w io.Writer, s *protocol.StatusResult) error {
	return renderTable(w, [][]string{
		{"FIELD", "VALUE"},
		{"version", s.Version},
		{"pid", strconv.Itoa(s.Pid)},
		{"uptime", s.Uptime},
		{"builds", strconv.Itoa(s.Builds)},
		{"active", strconv.Itoa(s.Active)},
	})
}

// Renders rows as a table whose first row is the header.
func renderTable(w io.Writer, data [][]string) error {
	output, err := pterm.DefaultTable.WithHasHeader().WithData(data).WithSeparator("  ").Srender()
	if err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}

	if _, err := fmt.Fprintf(w, "%s\n", output); err != nil {
		return fmt.Errorf("printing to out stream: %w", err)
	}
	return nil
}
