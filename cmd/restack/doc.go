// Restack keeps a stack of Phabricator Differential revisions in the same
// order as the local commits that produced them.
//
// After a rebase reorders, drops or adds commits, the parent/child links on
// the server still describe the old order. Restack fetches the server's
// stack, computes the fewest edits that rebuild it from the local history
// and applies them one revision at a time.
//
// Usage:
//
//	restack reorganise                # merge-base with upstream .. HEAD
//	restack reorganise --dry-run      # show the edits, change nothing
//	restack reorg main feature --yes  # explicit range, no prompt
//	restack stack D123                # show the stack D123 belongs to
//	restack plan --remote A,B,C --local A,C,B
//	restack hook install              # check after every rebase
package main
