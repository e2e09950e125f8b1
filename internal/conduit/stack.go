package conduit

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dshills/restack/internal/chain"
	"github.com/dshills/restack/internal/reorg"
)

const (
	edgeParent = "revision.parent"
	edgeChild  = "revision.child"
	edgeLimit  = 10000
)

// ErrMultipleChildren is returned when a remote revision has more than one
// child, which a linear stack cannot represent.
var ErrMultipleChildren = errors.New("revision has multiple children")

type edge struct {
	SourcePHID      string `json:"sourcePHID"`
	EdgeType        string `json:"edgeType"`
	DestinationPHID string `json:"destinationPHID"`
}

type edgeResult struct {
	Data []edge `json:"data"`
}

// GetStack discovers every revision connected to seeds through parent and
// child edges and returns the child relation as a chain keyed by PHID.
// Seeds with no edges appear as isolated nodes.
func (c *Client) GetStack(ctx context.Context, seeds []string) (chain.Chain[string], error) {
	stack := make(chain.Chain[string])
	known := make(map[string]bool)
	frontier := slices.Clone(seeds)
	slices.Sort(frontier)
	frontier = slices.Compact(frontier)

	for round := 1; len(frontier) > 0; round++ {
		for _, phid := range frontier {
			known[phid] = true
		}

		var res edgeResult
		params := map[string]any{
			"sourcePHIDs": frontier,
			"types":       []string{edgeParent, edgeChild},
			"limit":       edgeLimit,
		}
		if err := c.Call(ctx, "edge.search", params, &res); err != nil {
			return nil, err
		}

		var next []string
		for _, e := range res.Data {
			for _, phid := range []string{e.SourcePHID, e.DestinationPHID} {
				if !known[phid] && !slices.Contains(next, phid) {
					next = append(next, phid)
				}
			}
			if e.EdgeType != edgeChild {
				continue
			}
			if prev, ok := stack[e.SourcePHID]; ok && prev.OK && prev.Node != e.DestinationPHID {
				return nil, fmt.Errorf("%w: %s -> %s, %s", ErrMultipleChildren, e.SourcePHID, prev.Node, e.DestinationPHID)
			}
			stack[e.SourcePHID] = chain.To(e.DestinationPHID)
		}
		c.log.Debug("stack discovery", "round", round, "edges", len(res.Data), "new", len(next))
		slices.Sort(next)
		frontier = next
	}

	for phid := range known {
		if _, ok := stack[phid]; !ok {
			stack[phid] = chain.None[string]()
		}
	}
	return stack, nil
}

// Transaction is one entry of a differential.revision.edit call.
type Transaction struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Transactions converts planned ops into Conduit transactions.
func Transactions(ops []reorg.Op[string]) []Transaction {
	txns := make([]Transaction, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case reorg.Abandon:
			txns = append(txns, Transaction{Type: string(op.Kind), Value: true})
		default:
			children := []string{}
			if op.Child.OK {
				children = append(children, op.Child.Node)
			}
			txns = append(txns, Transaction{Type: string(op.Kind), Value: children})
		}
	}
	return txns
}

// EditRevision applies transactions to one revision.
func (c *Client) EditRevision(ctx context.Context, phid string, txns []Transaction) error {
	params := map[string]any{
		"objectIdentifier": phid,
		"transactions":     txns,
	}
	if err := c.Call(ctx, "differential.revision.edit", params, nil); err != nil {
		return fmt.Errorf("editing %s: %w", phid, err)
	}
	c.log.Debug("revision edited", "phid", phid, "transactions", len(txns))
	return nil
}

// Submit applies one node's planned ops.
func (c *Client) Submit(ctx context.Context, phid string, ops []reorg.Op[string]) error {
	return c.EditRevision(ctx, phid, Transactions(ops))
}
