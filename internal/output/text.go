package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/restack/internal/conduit"
)

// TextWriter outputs a human-readable text report.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, report *Report) error {
	ew := &errWriter{w: w}

	if report.Status == StatusStack {
		ew.printf("Remote stack (%d revisions)\n", len(report.Remote))
		ew.println(strings.Repeat("─", 60))
		for _, n := range report.Remote {
			ew.printf("  %-8s %-14s %s\n", n.Label, bracket(n.Status), n.Title)
		}
		return ew.err
	}

	if report.Repo.Range != "" {
		ew.printf("Range: %s", report.Repo.Range)
		if report.Repo.Branch != "" {
			ew.printf(" (branch: %s)", report.Repo.Branch)
		}
		ew.println("")
	}
	ew.printf("Remote: %s\n", arrowList(report.Remote))
	ew.printf("Local:  %s\n", arrowList(report.Local))
	ew.println(strings.Repeat("─", 60))

	switch report.Status {
	case StatusNotNeeded:
		ew.println("Reorganisation is not needed.")
		return ew.err
	case StatusApplied:
		ew.printf("Updated %d revisions:\n", len(report.Changes))
	case StatusFailed:
		if len(report.Submitted) == 0 {
			ew.printf("Error: %s\n", report.Error)
			return ew.err
		}
		ew.printf("Reorganisation stopped after %d of %d revisions:\n", len(report.Submitted), len(report.Changes))
	default:
		ew.printf("Planned changes (%d revisions):\n", len(report.Changes))
	}

	width := 0
	for _, c := range report.Changes {
		width = max(width, len(c.Label))
	}
	for _, c := range report.Changes {
		ew.printf("  %-*s  %s\n", width, c.Label, describeTransactions(c.Transactions, labelsOf(report)))
	}
	if report.Error != "" {
		ew.printf("\nError: %s\n", report.Error)
	}
	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func arrowList(nodes []Node) string {
	if len(nodes) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.Label
	}
	return strings.Join(parts, " → ")
}

func bracket(s string) string {
	if s == "" {
		return ""
	}
	return "[" + s + "]"
}

// labelsOf maps node IDs to labels so transaction values can be shown by
// name instead of PHID.
func labelsOf(report *Report) map[string]string {
	m := make(map[string]string)
	for _, list := range [][]Node{report.Remote, report.Local} {
		for _, n := range list {
			m[n.ID] = n.Label
		}
	}
	for _, c := range report.Changes {
		m[c.Node] = c.Label
	}
	return m
}

func describeTransactions(txns []conduit.Transaction, labels map[string]string) string {
	parts := make([]string, len(txns))
	for i, tx := range txns {
		switch v := tx.Value.(type) {
		case []string:
			if len(v) == 0 {
				parts[i] = tx.Type + " none"
				continue
			}
			names := make([]string, len(v))
			for j, id := range v {
				if l, ok := labels[id]; ok {
					names[j] = l
				} else {
					names[j] = id
				}
			}
			parts[i] = tx.Type + " " + strings.Join(names, " ")
		default:
			parts[i] = tx.Type
		}
	}
	return strings.Join(parts, ", ")
}
