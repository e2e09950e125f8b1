// Package config loads restack settings.
//
// Values are layered as defaults, then the JSON file at
// $XDG_CONFIG_HOME/restack/config.json, then phabricator.uri from the
// nearest .arcconfig, then RESTACK_* environment variables, then CLI flags.
// The API token is never stored here; [Token] reads it from
// RESTACK_API_TOKEN or ~/.arcrc.
package config
