package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/restack/internal/conduit"
	"github.com/dshills/restack/internal/reorg"
)

// Status values of a Report.
const (
	StatusPlanned   = "planned"
	StatusApplied   = "applied"
	StatusNotNeeded = "not-needed"
	StatusFailed    = "failed"
	StatusStack     = "stack"
)

// Report is everything a command shows about a stack or a plan.
type Report struct {
	Tool      string   `json:"tool" yaml:"tool"`
	Version   string   `json:"version" yaml:"version"`
	Status    string   `json:"status" yaml:"status"`
	Repo      RepoInfo `json:"repo,omitzero" yaml:"repo,omitempty"`
	Remote    []Node   `json:"remote" yaml:"remote"`
	Local     []Node   `json:"local,omitempty" yaml:"local,omitempty"`
	Changes   []Change `json:"changes,omitempty" yaml:"changes,omitempty"`
	Submitted []string `json:"submitted,omitempty" yaml:"submitted,omitempty"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// RepoInfo describes where the local stack came from.
type RepoInfo struct {
	Root   string `json:"root,omitempty" yaml:"root,omitempty"`
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Range  string `json:"range,omitempty" yaml:"range,omitempty"`
}

// Node is one revision or unsubmitted commit.
type Node struct {
	ID     string `json:"id" yaml:"id"`
	Label  string `json:"label" yaml:"label"`
	Title  string `json:"title,omitempty" yaml:"title,omitempty"`
	Status string `json:"status,omitempty" yaml:"status,omitempty"`
	Commit string `json:"commit,omitempty" yaml:"commit,omitempty"`
}

// Change holds the Conduit transactions for one node, in issue order.
type Change struct {
	Node         string                `json:"node" yaml:"node"`
	Label        string                `json:"label" yaml:"label"`
	Transactions []conduit.Transaction `json:"transactions" yaml:"transactions"`
}

// Changes converts a plan into per-node changes in issue order. label
// renders a node for people and may be nil.
func Changes(plan *reorg.Plan[string], label func(string) string) []Change {
	if plan.Empty() {
		return nil
	}
	if label == nil {
		label = func(s string) string { return s }
	}
	out := make([]Change, 0, len(plan.Order))
	for _, n := range plan.Order {
		out = append(out, Change{
			Node:         n,
			Label:        label(n),
			Transactions: conduit.Transactions(plan.Ops[n]),
		})
	}
	return out
}

// Nodes wraps bare node names.
func Nodes(names []string, label func(string) string) []Node {
	if label == nil {
		label = func(s string) string { return s }
	}
	out := make([]Node, len(names))
	for i, n := range names {
		out[i] = Node{ID: n, Label: label(n)}
	}
	return out
}

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, report *Report) error
}

// Formats lists the names GetWriter accepts.
var Formats = []string{"text", "json", "markdown", "yaml"}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown":
		return &MarkdownWriter{}, nil
	case "yaml":
		return &YAMLWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteReport writes the report to the specified output (file path or stdout).
func WriteReport(report *Report, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	} else {
		w = os.Stdout
	}

	return writer.Write(w, report)
}
