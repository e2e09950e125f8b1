// Package redact strips credentials from text before it is logged or shown
// to the user.
//
// Detection uses regex heuristics for Conduit API/CLI tokens, JSON token
// fields, bearer tokens, session cookies and generic secret assignments.
// [Form] additionally decodes form-encoded request bodies before scanning.
package redact
