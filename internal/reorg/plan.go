package reorg

import (
	"cmp"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/restack/internal/chain"
)

// Kind identifies an edit applied to a single revision.
type Kind string

const (
	SetChild    Kind = "children.set"
	RemoveChild Kind = "children.remove"
	Abandon     Kind = "abandon"
)

// Op is one edit on a node. Child is the successor for SetChild (none
// clears it) and the retracted successor for RemoveChild.
type Op[N cmp.Ordered] struct {
	Kind  Kind
	Child chain.Next[N]
}

func (o Op[N]) String() string {
	if o.Kind == Abandon {
		return string(o.Kind)
	}
	return fmt.Sprintf("%s %s", o.Kind, o.Child)
}

// Plan holds the edits needed to turn one chain into another. Order lists
// every node that has at least one op, in the order the edits must be
// issued; Ops holds each node's edits in their own order.
type Plan[N cmp.Ordered] struct {
	Order []N
	Ops   map[N][]Op[N]
}

func newPlan[N cmp.Ordered]() *Plan[N] {
	return &Plan[N]{Ops: make(map[N][]Op[N])}
}

func (p *Plan[N]) add(n N, op Op[N]) {
	if _, ok := p.Ops[n]; !ok {
		p.Order = append(p.Order, n)
	}
	p.Ops[n] = append(p.Ops[n], op)
}

// Empty reports whether the plan has nothing to do.
func (p *Plan[N]) Empty() bool {
	return p == nil || len(p.Order) == 0
}

// Nodes returns the nodes that receive edits, in issue order.
func (p *Plan[N]) Nodes() []N {
	return p.Order
}

// Abandoned returns the nodes the plan abandons, in issue order.
func (p *Plan[N]) Abandoned() []N {
	var out []N
	for _, n := range p.Order {
		for _, op := range p.Ops[n] {
			if op.Kind == Abandon {
				out = append(out, n)
			}
		}
	}
	return out
}

// References returns every node the plan mentions, either as the edited
// node or as a successor, in first-mention order.
func (p *Plan[N]) References() []N {
	seen := make(map[N]bool)
	var out []N
	note := func(n N) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, n := range p.Order {
		note(n)
		for _, op := range p.Ops[n] {
			if op.Child.OK {
				note(op.Child.Node)
			}
		}
	}
	return out
}

// Apply replays the plan on a copy of c, checking the structure after every
// single op. The input chain is left untouched.
func (p *Plan[N]) Apply(c chain.Chain[N]) (chain.Chain[N], error) {
	model := c.Clone()
	if p == nil {
		return model, nil
	}
	for _, n := range p.Order {
		for _, op := range p.Ops[n] {
			if err := applyOp(model, n, op); err != nil {
				return nil, err
			}
			if err := model.Validate(); err != nil {
				return nil, &InvariantError{Step: fmt.Sprintf("%v: %s", n, op), Err: err}
			}
		}
	}
	return model, nil
}

func applyOp[N cmp.Ordered](model chain.Chain[N], n N, op Op[N]) error {
	switch op.Kind {
	case SetChild:
		model[n] = op.Child
	case RemoveChild:
		cur, ok := model[n]
		if !ok || cur != op.Child {
			return &InvariantError{
				Step: fmt.Sprintf("%v: %s", n, op),
				Err:  fmt.Errorf("current successor is %s", cur),
			}
		}
		model[n] = chain.None[N]()
	case Abandon:
		if _, ok := model[n]; !ok {
			return &InvariantError{Step: fmt.Sprintf("%v: %s", n, op), Err: errors.New("node is not in the chain")}
		}
		delete(model, n)
	default:
		return fmt.Errorf("unknown op kind %q", op.Kind)
	}
	return nil
}

// String renders one line per node, e.g. "A: children.set C".
func (p *Plan[N]) String() string {
	if p.Empty() {
		return "(no changes)"
	}
	var b strings.Builder
	for _, n := range p.Order {
		ops := make([]string, len(p.Ops[n]))
		for i, op := range p.Ops[n] {
			ops[i] = op.String()
		}
		fmt.Fprintf(&b, "%v: %s\n", n, strings.Join(ops, ", "))
	}
	return b.String()
}
