// Package cache stores immutable Conduit lookups on disk.
//
// Revision records never change their ID or PHID, so the client keeps them in
// per-key JSON files under $XDG_CACHE_HOME/restack with a configurable TTL.
// Stack edges are mutable and are always fetched fresh.
package cache
