package subagents

import (
	"regexp"
	"strings"
)

const secretMask = "********"

// secretPattern matches the value that follows a password keyword, e.g. "password: hunter2".
var secretPattern = regexp.MustCompile(`(?i)\b(password|passcode|passwd|pwd)(\s*(?:is|:|=|-)?\s*)(\S+)`)

// MaskSecrets hides every literal secret in msg and any value given after a password keyword.
func MaskSecrets(msg string, secrets ...string) string {
	for _, s := range secrets {
		if s = strings.TrimSpace(s); s != "" {
			msg = strings.ReplaceAll(msg, s, secretMask)
		}
	}
	return secretPattern.ReplaceAllString(msg, "${1}${2}"+secretMask)
}

// Redactor is implemented by sub-agents whose input may carry credentials.
// Redact returns the message as it may be stored and shown again.
type Redactor interface {
	Redact(message string) string
}

// RedactedError carries the storable form of the message of a failed turn.
type RedactedError struct {
	Err     error
	Message string
}

func (e *RedactedError) Error() string { return e.Err.Error() }

func (e *RedactedError) Unwrap() error { return e.Err }
