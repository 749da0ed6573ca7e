package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/storacha/shockaudit/pkg/audit"
)

var (
	heading   = lipgloss.NewStyle().Bold(true)
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	faint     = lipgloss.NewStyle().Faint(true)
)

func Success(message string, args ...interface{}) {
	fmt.Printf("shockaudit: "+message+"\n", args...)
}

func Error(err error) {
	fmt.Fprintf(os.Stderr, "error: %s\n", err)
}

func Warning(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "warning: "+message+"\n", args...)
}

// IsTerminal reports whether w writes to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Summary writes the closing tally of an audit run. Styling is applied only
// when w is a terminal.
func Summary(w io.Writer, t audit.Tally) {
	styled := IsTerminal(w)
	render := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	line := t.String()
	if t.Failed == 0 {
		fmt.Fprintln(w, render(passStyle, line))
	} else {
		fmt.Fprintln(w, render(failStyle, line))
	}

	var details []string
	if t.NeedsRepair > 0 {
		details = append(details, humanize.Comma(int64(t.NeedsRepair))+" need repair")
	}
	if t.Invalid > 0 {
		details = append(details, humanize.Comma(int64(t.Invalid))+" invalid")
	}
	if t.Warnings > 0 {
		details = append(details, humanize.Comma(int64(t.Warnings))+" warnings")
	}
	if t.Skipped > 0 {
		details = append(details, humanize.Comma(int64(t.Skipped))+" undecodable records skipped")
	}
	if len(details) > 0 {
		fmt.Fprintln(w, render(faint, "  "+strings.Join(details, ", ")))
	}
}

// Settings writes name/value/source rows under a heading.
func Settings(w io.Writer, title string, rows [][3]string) {
	if IsTerminal(w) {
		title = heading.Render(title)
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, r := range rows {
		fmt.Fprintf(w, "  %-20s = %-30s (%s)\n", r[0], r[1], r[2])
	}
}
