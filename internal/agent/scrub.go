package agent

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// Key shapes scrubbed from upstream error text and page observations.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`sk-[a-zA-Z0-9_*-]{20,}`),
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36}`),
	regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|bearer|authorization)\s*[:=]\s*["']?[^\s"']{8,}["']?`),
}

// ScrubCredentials masks known credential shapes and, when given, the exact
// key of the current run.
func ScrubCredentials(text, key string) string {
	if key != "" {
		text = strings.ReplaceAll(text, key, redacted)
	}
	for _, p := range credentialPatterns {
		text = p.ReplaceAllString(text, redacted)
	}
	return text
}
