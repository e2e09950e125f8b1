// Package gitctx reads the local commit stack from a git repository.
//
// It shells out to git for the commits in a range, oldest first, and pulls
// the Differential revision each commit points at out of its message. The
// default range starts at the merge base with the branch's upstream.
package gitctx
