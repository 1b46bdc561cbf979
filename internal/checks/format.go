package checks

import (
	"fmt"
	"io"
)

var bucketOrder = []struct {
	header string
	lo, hi Level
}{
	{"CRITICALS", LevelCritical, Level(1<<31 - 1)},
	{"ERRORS", LevelError, LevelCritical},
	{"WARNINGS", LevelWarning, LevelError},
	{"INFOS", LevelInfo, LevelWarning},
	{"DEBUGS", LevelDebug, LevelInfo},
}

// FormatResult renders findings grouped by severity, most serious first,
// then a one-line summary. With verbose it also lists silenced findings.
func FormatResult(w io.Writer, res Result, verbose bool) {
	if len(res.Visible) > 0 {
		fmt.Fprintf(w, "System check identified some issues:\n")
		for _, b := range bucketOrder {
			var group []Message
			for _, m := range res.Visible {
				if m.Level >= b.lo && m.Level < b.hi {
					group = append(group, m)
				}
			}
			if len(group) == 0 {
				continue
			}
			fmt.Fprintf(w, "\n%s:\n", b.header)
			for _, m := range group {
				fmt.Fprintf(w, "%s\n", m.String())
			}
		}
		fmt.Fprintln(w)
	}
	if verbose && len(res.Silenced) > 0 {
		fmt.Fprintf(w, "SILENCED:\n")
		for _, m := range res.Silenced {
			fmt.Fprintf(w, "%s\n", m.String())
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "%s\n", Summary(res))
}

// Summary is the closing line of every check run.
func Summary(res Result) string {
	n := len(res.Visible)
	silenced := len(res.Silenced)
	switch n {
	case 0:
		return fmt.Sprintf("System check identified no issues (%d silenced).", silenced)
	case 1:
		return fmt.Sprintf("System check identified 1 issue (%d silenced).", silenced)
	default:
		return fmt.Sprintf("System check identified %d issues (%d silenced).", n, silenced)
	}
}
