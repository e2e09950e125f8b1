package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dshills/restack/internal/chain"
	"github.com/dshills/restack/internal/gitctx"
	"github.com/dshills/restack/internal/reorg"
)

var (
	ErrNotNeeded    = errors.New("reorganisation is not needed")
	ErrPlaceholders = errors.New("commits without a revision must be submitted first")
	ErrCancelled    = errors.New("reorganisation cancelled")
)

// Remote reads revisions and their stack from the server.
type Remote interface {
	ResolvePHIDs(ctx context.Context, ids []int) (map[int]string, error)
	ResolveIDs(ctx context.Context, phids []string) (map[string]int, error)
	GetStack(ctx context.Context, seeds []string) (chain.Chain[string], error)
}

// Submitter applies one node's edits on the server.
type Submitter interface {
	Submit(ctx context.Context, phid string, ops []reorg.Op[string]) error
}

// Deps are the collaborators Reorganise talks to.
type Deps struct {
	Remote    Remote
	Submitter Submitter
	Logger    *slog.Logger
}

// Options control a reorganisation.
type Options struct {
	DryRun bool
	// Confirm is asked before anything is submitted. Nil means yes.
	Confirm func(*Result) bool
	// Progress is told about each node once its edits are accepted.
	Progress func(node string, done, total int)
}

// Result describes what Reorganise found and did.
type Result struct {
	Local     []Entry
	Remote    []string
	Plan      *reorg.Plan[string]
	Submitted []string
	IDs       map[string]int // PHID -> revision ID for every node in play
}

// Label renders node as "D<id>" when its revision is known.
func (r *Result) Label(node string) string {
	if r == nil {
		return node
	}
	return label(node, r.IDs)
}

// Placeholders returns the local entries that have no revision yet.
func (r *Result) Placeholders() []Entry {
	var out []Entry
	for _, e := range r.Local {
		if e.Placeholder() {
			out = append(out, e)
		}
	}
	return out
}

// SubmitError reports the node whose edits were rejected. Nodes listed in
// Done were already updated on the server.
type SubmitError struct {
	Node string
	Done []string
	Err  error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submitting %s (after %d of the plan's nodes): %v", e.Node, len(e.Done), e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Reorganise makes the server's stack match the local commits. It always
// returns the Result gathered so far, also alongside an error, so callers
// can show what was planned.
func Reorganise(ctx context.Context, deps Deps, commits []gitctx.CommitInfo, opts Options) (*Result, error) {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	res := &Result{IDs: make(map[string]int)}

	if len(commits) == 0 {
		return res, noLocal(ErrNoLocalStack)
	}
	ids := RevisionIDs(commits)
	if len(ids) == 0 {
		return res, noLocal(ErrNoRevisions)
	}

	phids, err := deps.Remote.ResolvePHIDs(ctx, ids)
	if err != nil {
		return res, fmt.Errorf("resolving revisions: %w", err)
	}
	for id, phid := range phids {
		res.IDs[phid] = id
	}
	res.Local, err = Local(commits, phids)
	if err != nil {
		return res, err
	}

	var seeds []string
	for _, e := range res.Local {
		if !e.Placeholder() {
			seeds = append(seeds, e.Node)
		}
	}
	if len(seeds) == 0 {
		return res, noLocal(ErrNoRevisions)
	}

	remote, err := deps.Remote.GetStack(ctx, seeds)
	if err != nil {
		return res, fmt.Errorf("fetching remote stack: %w", err)
	}
	res.Remote, err = Linearize(remote)
	if err != nil {
		return res, err
	}
	log.Debug("stacks loaded", "local", len(res.Local), "remote", len(res.Remote))

	res.Plan, err = reorg.PrepareTransactions(res.Remote, Nodes(res.Local))
	if err != nil {
		return res, err
	}
	if res.Plan.Empty() {
		return res, ErrNotNeeded
	}

	if err := res.fillIDs(ctx, deps.Remote); err != nil {
		log.Debug("revision lookup failed", "error", err)
	}

	if opts.DryRun {
		return res, nil
	}
	if p := res.Placeholders(); len(p) > 0 {
		return res, &reorg.PreconditionError{Chain: "local", Err: fmt.Errorf("%w: %s", ErrPlaceholders, describe(p))}
	}
	if opts.Confirm != nil && !opts.Confirm(res) {
		return res, ErrCancelled
	}

	total := len(res.Plan.Order)
	for _, node := range res.Plan.Order {
		if err := ctx.Err(); err != nil {
			return res, &SubmitError{Node: res.Label(node), Done: slices.Clone(res.Submitted), Err: err}
		}
		if err := deps.Submitter.Submit(ctx, node, res.Plan.Ops[node]); err != nil {
			return res, &SubmitError{Node: res.Label(node), Done: slices.Clone(res.Submitted), Err: err}
		}
		res.Submitted = append(res.Submitted, node)
		log.Debug("revision updated", "node", res.Label(node), "ops", len(res.Plan.Ops[node]))
		if opts.Progress != nil {
			opts.Progress(node, len(res.Submitted), total)
		}
	}
	return res, nil
}

// fillIDs looks up revision IDs for remote nodes the local stack does not
// mention, so abandoned revisions can be shown by name.
func (r *Result) fillIDs(ctx context.Context, remote Remote) error {
	var missing []string
	for _, n := range r.Plan.References() {
		if _, ok := r.IDs[n]; !ok && !IsPlaceholder(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	ids, err := remote.ResolveIDs(ctx, missing)
	if err != nil {
		return err
	}
	for phid, id := range ids {
		r.IDs[phid] = id
	}
	return nil
}

func describe(entries []Entry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%s %q", e.Commit.Short(), e.Commit.Subject)
	}
	return strings.Join(parts, ", ")
}
