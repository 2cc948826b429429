package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLength caps a discussion message, in characters.
const MaxMessageLength = 4000

// Message is a post on a run's discussion thread.
type Message struct {
	ID        string
	Body      string
	AuthorID  string
	CreatedAt time.Time
}

// CleanMessageBody trims the body and checks it is neither empty nor too long.
func CleanMessageBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrMessageBodyRequired
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return body, nil
}
