package chain

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrMultipleHeads = errors.New("multiple heads")
	ErrNoHead        = errors.New("no head")
	ErrCycle         = errors.New("dependency loop")
	ErrDangling      = errors.New("successor is not part of the chain")
	ErrDuplicate     = errors.New("duplicate node")
)

// Error reports a structural violation together with the nodes involved.
type Error struct {
	Err   error
	Nodes []string
	Chain string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if len(e.Nodes) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Nodes, ", "))
	}
	if e.Chain != "" {
		fmt.Fprintf(&b, " in: %s", e.Chain)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Next is a node's successor. The zero value marks a tail.
type Next[N cmp.Ordered] struct {
	Node N
	OK   bool
}

// To returns a successor pointing at n.
func To[N cmp.Ordered](n N) Next[N] {
	return Next[N]{Node: n, OK: true}
}

// None returns the tail marker.
func None[N cmp.Ordered]() Next[N] {
	return Next[N]{}
}

func (n Next[N]) String() string {
	if !n.OK {
		return "none"
	}
	return fmt.Sprint(n.Node)
}

// Chain maps every node to its successor.
type Chain[N cmp.Ordered] map[N]Next[N]

// WalkMode selects how Walk treats more than one head.
type WalkMode int

const (
	// Strict fails when more than one head exists.
	Strict WalkMode = iota
	// AllowMultipleHeads walks from the first head in sorted order and
	// ignores the others.
	AllowMultipleHeads
)

// FromSeq builds a chain in which each node points at the node after it.
// Nodes must be unique; for repeated nodes the last occurrence wins.
func FromSeq[N cmp.Ordered](seq []N) Chain[N] {
	c := make(Chain[N], len(seq))
	for i, n := range seq {
		if i+1 < len(seq) {
			c[n] = To(seq[i+1])
		} else {
			c[n] = None[N]()
		}
	}
	return c
}

// Unique returns an ErrDuplicate error naming every node that appears more
// than once in seq.
func Unique[N cmp.Ordered](seq []N) error {
	count := make(map[N]int, len(seq))
	var dups []string
	for _, n := range seq {
		count[n]++
		if count[n] == 2 {
			dups = append(dups, fmt.Sprint(n))
		}
	}
	if len(dups) == 0 {
		return nil
	}
	return &Error{Err: ErrDuplicate, Nodes: dups}
}

// Heads returns the nodes nobody points at, sorted.
func (c Chain[N]) Heads() []N {
	referenced := make(map[N]bool, len(c))
	for _, next := range c {
		if next.OK {
			referenced[next.Node] = true
		}
	}
	var heads []N
	for n := range c {
		if !referenced[n] {
			heads = append(heads, n)
		}
	}
	slices.Sort(heads)
	return heads
}

// Walk linearises the chain from its head to its tail.
func (c Chain[N]) Walk(mode WalkMode) ([]N, error) {
	if len(c) == 0 {
		return nil, nil
	}
	heads := c.Heads()
	if len(heads) == 0 {
		return nil, c.fail(ErrNoHead)
	}
	if len(heads) > 1 && mode != AllowMultipleHeads {
		return nil, c.fail(ErrMultipleHeads, heads...)
	}
	return c.walkFrom(heads[0])
}

func (c Chain[N]) walkFrom(head N) ([]N, error) {
	var nodes []N
	visited := make(map[N]bool)
	node := head
	for {
		nodes = append(nodes, node)
		visited[node] = true

		next, ok := c[node]
		if !ok {
			return nil, c.fail(ErrDangling, node)
		}
		if !next.OK {
			return nodes, nil
		}
		if visited[next.Node] {
			return nil, c.fail(ErrCycle, next.Node)
		}
		node = next.Node
	}
}

// Validate checks every component of a possibly multi-headed chain: all
// keys must be reachable from some head without revisiting a node or
// following a successor that is not a key.
func (c Chain[N]) Validate() error {
	if _, err := c.Walk(AllowMultipleHeads); err != nil {
		return err
	}
	_, err := c.Components()
	return err
}

// Components returns one sequence per head, in head order. While a chain is
// being rewritten two nodes may briefly share a successor; the shared tail
// then appears in both sequences.
func (c Chain[N]) Components() ([][]N, error) {
	var parts [][]N
	seen := make(map[N]bool, len(c))
	for _, head := range c.Heads() {
		seq, err := c.walkFrom(head)
		if err != nil {
			return nil, err
		}
		for _, n := range seq {
			seen[n] = true
		}
		parts = append(parts, seq)
	}
	if len(seen) != len(c) {
		// Whatever no head reaches sits on a cycle.
		var rest []N
		for n := range c {
			if !seen[n] {
				rest = append(rest, n)
			}
		}
		slices.Sort(rest)
		return nil, c.fail(ErrCycle, rest...)
	}
	return parts, nil
}

// Clone returns a copy that can be mutated independently.
func (c Chain[N]) Clone() Chain[N] {
	out := make(Chain[N], len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// String renders the chain with sorted keys, e.g. {A: B, B: none}.
func (c Chain[N]) String() string {
	keys := make([]N, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%v: %s", k, c[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (c Chain[N]) fail(err error, nodes ...N) error {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = fmt.Sprint(n)
	}
	return &Error{Err: err, Nodes: names, Chain: c.String()}
}
