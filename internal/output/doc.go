// Package output formats stack reports for display or machine consumption.
//
// Four formats are supported:
//   - text: human-readable terminal output (default)
//   - json: the full report, transactions in Conduit shape
//   - markdown: a summary table with the changes in a collapsible section
//   - yaml: the full report as YAML
//
// Use [GetWriter] to obtain a [Writer] for a given format string, or
// [WriteReport] to write to a file or stdout.
package output
