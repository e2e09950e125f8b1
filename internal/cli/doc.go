// Package cli wires together the Cobra command tree for the restack binary.
//
// It defines the root command and all subcommands (reorganise, stack, plan,
// hook, config, cache, version), binds flags, reads configuration, runs the
// stack workflow, and returns deterministic exit codes for scripts and git
// hooks.
package cli
