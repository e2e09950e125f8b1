package stack

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/restack/internal/chain"
	"github.com/dshills/restack/internal/gitctx"
	"github.com/dshills/restack/internal/reorg"
)

var (
	ErrNoLocalStack = errors.New("no commits to reorganise")
	ErrNoRevisions  = errors.New("no commit has a revision")
	ErrNonLinear    = errors.New("remote stack is not linear")
)

const placeholderPrefix = "local:"

// Entry is one local commit and the node that stands for it in a plan:
// its revision PHID, or a placeholder when it has no revision yet.
type Entry struct {
	Commit gitctx.CommitInfo
	Node   string
}

// Placeholder reports whether the entry has no revision on the server.
func (e Entry) Placeholder() bool { return IsPlaceholder(e.Node) }

// IsPlaceholder reports whether node stands for an unsubmitted commit.
func IsPlaceholder(node string) bool { return strings.HasPrefix(node, placeholderPrefix) }

// Local maps commits, oldest first, to plan nodes using phids (revision ID
// to PHID). Commits whose revision is missing or unknown get a placeholder.
// Two commits pointing at the same revision make the stack invalid.
func Local(commits []gitctx.CommitInfo, phids map[int]string) ([]Entry, error) {
	if len(commits) == 0 {
		return nil, noLocal(ErrNoLocalStack)
	}
	entries := make([]Entry, 0, len(commits))
	owner := make(map[string]string, len(commits))
	var dups []string
	for _, c := range commits {
		node := placeholderPrefix + c.Short()
		if phid, ok := phids[c.Revision]; ok && c.Revision != 0 {
			node = phid
			if prev, seen := owner[phid]; seen {
				dups = append(dups, fmt.Sprintf("D%d in %s and %s", c.Revision, prev, c.Short()))
			}
			owner[phid] = c.Short()
		}
		entries = append(entries, Entry{Commit: c, Node: node})
	}
	if len(dups) > 0 {
		return nil, &reorg.PreconditionError{
			Chain: "local",
			Err:   &chain.Error{Err: chain.ErrDuplicate, Nodes: dups},
		}
	}
	return entries, nil
}

func noLocal(err error) error {
	return &reorg.PreconditionError{Chain: "local", Err: err}
}

// Nodes returns the entries' nodes in stack order.
func Nodes(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Node
	}
	return out
}

// RevisionIDs returns the distinct non-zero revision IDs of commits.
func RevisionIDs(commits []gitctx.CommitInfo) []int {
	var ids []int
	seen := make(map[int]bool)
	for _, c := range commits {
		if c.Revision != 0 && !seen[c.Revision] {
			seen[c.Revision] = true
			ids = append(ids, c.Revision)
		}
	}
	return ids
}

// Linearize turns the remote chain into a head-to-tail sequence. Revisions
// with no edges at all are not part of any stack and are dropped, so the
// plan treats them as new, unless a single such revision is all there is.
// More than one multi-revision component means the remote stack is not
// linear.
func Linearize(c chain.Chain[string]) ([]string, error) {
	parts, err := c.Components()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNonLinear, err)
	}
	var (
		seq   []string
		heads []string
	)
	for _, part := range parts {
		if len(part) < 2 {
			continue
		}
		heads = append(heads, part[0])
		seq = part
	}
	if len(heads) > 1 {
		return nil, fmt.Errorf("%w: %w", ErrNonLinear, &chain.Error{Err: chain.ErrMultipleHeads, Nodes: heads, Chain: c.String()})
	}
	if len(heads) == 0 && len(parts) == 1 {
		return parts[0], nil
	}
	return seq, nil
}

// label renders a node for people: "D12" for revisions, the placeholder
// itself otherwise.
func label(node string, ids map[string]int) string {
	if id, ok := ids[node]; ok {
		return "D" + strconv.Itoa(id)
	}
	return node
}
