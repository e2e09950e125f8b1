package redact

import (
	"net/url"
	"regexp"
)

const placeholder = "[REDACTED]"

// secretPatterns are regex heuristics for credentials that can end up in
// Conduit request bodies, error messages and debug logs.
var secretPatterns = []*regexp.Regexp{
	// Conduit API and CLI tokens
	regexp.MustCompile(`\b(api|cli)-[a-z0-9]{28}\b`),
	// JSON token fields, e.g. "__conduit__":{"token":"..."}
	regexp.MustCompile(`(?i)"(token|api\.token|password)"\s*:\s*"[^"]*"`),
	// Generic secrets/tokens/passwords in assignments
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	// Bearer tokens
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	// Phabricator session cookies
	regexp.MustCompile(`(?i)phsid=[A-Za-z0-9]{20,}`),
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	result := text
	for _, pat := range secretPatterns {
		result = pat.ReplaceAllString(result, placeholder)
	}
	return result
}

// Form redacts an encoded request body. Values are decoded first so that
// tokens hidden by percent-encoding are still caught.
func Form(body string) string {
	decoded, err := url.QueryUnescape(body)
	if err != nil {
		return Secrets(body)
	}
	return Secrets(decoded)
}
