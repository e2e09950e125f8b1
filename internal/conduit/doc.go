// Package conduit is a client for Phabricator's Conduit API.
//
// Requests are form-encoded POSTs to <url>/api/<method> carrying the token
// in the __conduit__ parameter. Rate limits and server errors are retried
// with exponential backoff; authentication failures are not.
//
// The client covers what stack reorganisation needs: revision lookups
// (cached by ID and PHID), stack discovery through edge.search, and
// revision edits built from planned ops.
package conduit
