// Package reorg plans the edits that reorganise a published stack of
// revisions into the order of the local commit stack.
//
// [PrepareTransactions] compares the remote and local stacks edge by edge and
// emits per-revision [Op] lists (children.set, children.remove, abandon) in a
// [Plan]. Only revisions whose links actually change receive edits. Every plan
// is replayed against the remote stack with [Plan.Apply] before it is
// returned; a plan that would pass through a cycle or end anywhere but the
// local stack is rejected with an [InvariantError].
package reorg
