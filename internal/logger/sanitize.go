package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxSenderLength is the maximum length for sender addresses in logs
	MaxSenderLength = 256
	// MaxSubjectLength is the maximum length for subject lines in logs
	MaxSubjectLength = 200
	// MaxErrorMessageLength is the maximum length for error messages in logs
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is the maximum length for general strings in logs
	MaxGeneralStringLength = 2000
	// MaxDebugContentLength is the maximum length for debug content (prompts/responses)
	MaxDebugContentLength = 10000
)

// SanitizeString sanitizes a general string for safe logging.
// Removes control characters, truncates to maxLength, and validates UTF-8.
// Mail headers are attacker-controlled, so everything that originates from a
// message goes through here before it reaches a log line.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = sanitizeFilterRunes(s)
	if len(s) > maxLength {
		s = s[:maxLength] + "..."
	}
	return s
}

// sanitizeFilterRunes validates UTF-8 and removes control characters (keeps printable, space, tab, newline, CR).
func sanitizeFilterRunes(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// SanitizeError sanitizes an error message for safe logging
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeSender sanitizes a sender address for safe logging
func SanitizeSender(sender string) string {
	return SanitizeString(sender, MaxSenderLength)
}

// SanitizeSubject sanitizes a subject line for safe logging
func SanitizeSubject(subject string) string {
	return SanitizeString(subject, MaxSubjectLength)
}

// SanitizeDebugContent sanitizes debug content (prompts/responses) for safe logging
func SanitizeDebugContent(content string) string {
	return SanitizeString(content, MaxDebugContentLength)
}
