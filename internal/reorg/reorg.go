package reorg

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/dshills/restack/internal/chain"
)

// PrepareTransactions computes the edits that turn the remote stack into
// the local one. Both stacks are head-to-tail sequences of unique nodes.
//
// Only edges that differ are touched. Nodes new to the stack get their local
// successor, nodes in both stacks whose successor changed are re-pointed (or
// have their old successor removed when they became the tail), and nodes
// missing from the local stack lose their successor and are abandoned.
//
// Edits are ordered new nodes first (reverse local order), then surviving
// nodes and finally removed nodes (both in remote order); issued in that
// order no intermediate state contains a cycle. The plan is replayed against the
// remote stack before it is returned and any mismatch is reported as an
// InvariantError.
func PrepareTransactions[N cmp.Ordered](remote, local []N) (*Plan[N], error) {
	if err := chain.Unique(remote); err != nil {
		return nil, &PreconditionError{Chain: "remote", Err: err}
	}
	if err := chain.Unique(local); err != nil {
		return nil, &PreconditionError{Chain: "local", Err: err}
	}

	remoteList := chain.FromSeq(remote)
	localList := chain.FromSeq(local)
	plan := newPlan[N]()

	// Tail first, so a new node's successor is always known by the time
	// the node is linked to it.
	for _, n := range slices.Backward(local) {
		if _, ok := remoteList[n]; !ok {
			plan.add(n, Op[N]{Kind: SetChild, Child: localList[n]})
		}
	}

	for _, n := range remote {
		want, ok := localList[n]
		if !ok {
			continue
		}
		have := remoteList[n]
		if have == want {
			continue
		}
		if want.OK {
			plan.add(n, Op[N]{Kind: SetChild, Child: want})
		} else {
			plan.add(n, Op[N]{Kind: RemoveChild, Child: have})
		}
	}

	for _, n := range remote {
		if _, ok := localList[n]; ok {
			continue
		}
		if have := remoteList[n]; have.OK {
			plan.add(n, Op[N]{Kind: RemoveChild, Child: have})
		}
		plan.add(n, Op[N]{Kind: Abandon})
	}

	if err := verify(plan, remoteList, local); err != nil {
		return nil, err
	}
	return plan, nil
}

func verify[N cmp.Ordered](plan *Plan[N], remote chain.Chain[N], local []N) error {
	result, err := plan.Apply(remote)
	if err != nil {
		return err
	}
	got, err := result.Walk(chain.Strict)
	if err != nil {
		return &InvariantError{Step: "final walk", Err: err}
	}
	if !slices.Equal(got, local) {
		return &InvariantError{Step: "final walk", Want: names(local), Got: names(got)}
	}
	return nil
}

func names[N cmp.Ordered](nodes []N) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = fmt.Sprint(n)
	}
	return out
}
