// Package stack ties the local commit stack to the revisions on the server.
//
// [Local] maps commits to revision PHIDs, [Linearize] turns the server's
// edge graph into a sequence, and [Reorganise] plans and submits the edits
// that make the server agree with the local order.
package stack
