// Package chain models a stack of revisions as a singly linked list.
//
// A [Chain] maps each node to its successor, or to none for the tail. [FromSeq]
// builds a chain from a head-to-tail sequence and [Chain.Walk] turns it back
// into one, failing on cycles, dangling successors, a missing head or, in
// [Strict] mode, more than one head. [Chain.Validate] is the weaker check used
// while a chain is being rewritten, when several heads are expected.
package chain
