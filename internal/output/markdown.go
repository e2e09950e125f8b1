package output

import (
	"io"
	"strings"
)

// MarkdownWriter outputs a report suitable for pasting into a review
// comment.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *Report) error {
	ew := &errWriter{w: w}

	if report.Status == StatusStack {
		ew.printf("## Stack\n\n")
		ew.printf("| Revision | Status | Title |\n")
		ew.printf("|----------|--------|-------|\n")
		for _, n := range report.Remote {
			ew.printf("| %s | %s | %s |\n", n.Label, n.Status, mdEscape(n.Title))
		}
		return ew.err
	}

	ew.printf("## Stack reorganisation\n\n")
	if report.Repo.Range != "" {
		ew.printf("Range: `%s`\n\n", report.Repo.Range)
	}
	ew.printf("| | Order |\n")
	ew.printf("|---|---|\n")
	ew.printf("| Remote | %s |\n", arrowList(report.Remote))
	ew.printf("| Local | %s |\n\n", arrowList(report.Local))

	if report.Status == StatusNotNeeded {
		ew.println("Reorganisation is not needed. :white_check_mark:")
		return ew.err
	}

	labels := labelsOf(report)
	ew.printf("<details>\n<summary>%s (%d revisions)</summary>\n\n", mdStatus(report.Status), len(report.Changes))
	for _, c := range report.Changes {
		ew.printf("- **%s**: %s\n", c.Label, describeTransactions(c.Transactions, labels))
	}
	ew.printf("\n</details>\n")
	if report.Error != "" {
		ew.printf("\n> **Error:** %s\n", report.Error)
	}
	return ew.err
}

func mdStatus(status string) string {
	switch status {
	case StatusApplied:
		return ":white_check_mark: Applied"
	case StatusFailed:
		return ":x: Failed"
	default:
		return ":memo: Planned"
	}
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
