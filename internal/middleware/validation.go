package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ValidateMessageContent validates user message content.
func ValidateMessageContent(content string) error {
	if len(strings.TrimSpace(content)) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateThreadID validates a thread identifier. Thread ids are opaque
// strings minted by the messaging ingress (Slack thread timestamps) or the
// dashboard, so only shape is checked.
func ValidateThreadID(id string) error {
	if len(id) == 0 {
		return errors.New("thread ID cannot be empty")
	}
	if len(id) > 255 {
		return errors.New("thread ID exceeds maximum length")
	}
	if strings.ContainsAny(id, " \t\n") {
		return errors.New("thread ID must not contain whitespace")
	}
	return nil
}
