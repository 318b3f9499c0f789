// Package agent runs provider-neutral agent loops: the model is asked for the
// next step, may request a page navigation, and sees the fetched page on the
// following turn.
//
// InputGuard scans text entering the model context (the user's task and
// fetched page text) for prompt injection patterns. GuardMode picks what
// happens on a match:
//   - "log":   info-level logging
//   - "warn":  warning-level logging (default)
//   - "block": the text is rejected
//   - "off":   no scanning
package agent

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

type GuardMode string

const (
	GuardLog   GuardMode = "log"
	GuardWarn  GuardMode = "warn"
	GuardBlock GuardMode = "block"
	GuardOff   GuardMode = "off"
)

// ErrInjectionBlocked is returned by Check in block mode.
var ErrInjectionBlocked = errors.New("input rejected: possible prompt injection")

type guardPattern struct {
	name    string
	pattern *regexp.Regexp
}

// InputGuard scans text for known prompt injection patterns.
type InputGuard struct {
	mode     GuardMode
	patterns []guardPattern
}

// NewInputGuard returns a guard with the built-in patterns. An empty mode
// means GuardWarn.
func NewInputGuard(mode GuardMode) *InputGuard {
	if mode == "" {
		mode = GuardWarn
	}
	return &InputGuard{mode: mode, patterns: defaultGuardPatterns()}
}

// Scan returns the names of matched patterns.
func (g *InputGuard) Scan(text string) []string {
	if text == "" || g.mode == GuardOff {
		return nil
	}
	var matches []string
	for _, gp := range g.patterns {
		if gp.pattern.MatchString(text) {
			matches = append(matches, gp.name)
		}
	}
	return matches
}

// Check scans text from source ("task" or a page URL) and applies the mode.
// Only block mode returns an error.
func (g *InputGuard) Check(source, text string) error {
	matches := g.Scan(text)
	if len(matches) == 0 {
		return nil
	}
	switch g.mode {
	case GuardLog:
		slog.Info("security.injection_detected", "source", source, "patterns", matches)
	case GuardBlock:
		slog.Warn("security.injection_blocked", "source", source, "patterns", matches)
		return fmt.Errorf("%w (%s)", ErrInjectionBlocked, strings.Join(matches, ","))
	default:
		slog.Warn("security.injection_detected", "source", source, "patterns", matches)
	}
	return nil
}

func defaultGuardPatterns() []guardPattern {
	return []guardPattern{
		{
			name:    "ignore_instructions",
			pattern: regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier|preceding)\s+(instructions?|rules?|prompts?|directives?|guidelines?)`),
		},
		{
			name:    "role_override",
			pattern: regexp.MustCompile(`(?i)(you are now|from now on you are|pretend you are|act as if you are)\s+`),
		},
		{
			name:    "system_tags",
			pattern: regexp.MustCompile(`(?i)</?system>|\[SYSTEM\]|\[INST\]|<<SYS>>|<\|im_start\|>system`),
		},
		{
			name:    "instruction_injection",
			pattern: regexp.MustCompile(`(?i)(new instructions?:|override:|system prompt:|<\|system\|>)`),
		},
		{
			name:    "null_bytes",
			pattern: regexp.MustCompile(`\x00`),
		},
		{
			name:    "fake_action",
			pattern: regexp.MustCompile("(?i)```action"),
		},
	}
}
