package chat

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultTitle names the session created lazily for a new agent.
	DefaultTitle = "Default Chat"

	// FallbackTitle is used when a derived title would be empty.
	FallbackTitle = "New Chat"

	maxTitleLen   = 50
	truncatedLen  = 47
	titleEllipsis = "..."
)

var numberedTitle = regexp.MustCompile(`^Chat \d+$`)

// IsDefaultTitle reports whether title was assigned automatically and
// may be replaced by one derived from the conversation.
func IsDefaultTitle(title string) bool {
	return title == DefaultTitle || numberedTitle.MatchString(title)
}

// NumberedTitle returns the default title for the n-th session.
func NumberedTitle(n int) string {
	return "Chat " + strconv.Itoa(n)
}

// DeriveTitle turns a user's first message into a session title. Line
// breaks become spaces and surrounding whitespace is dropped. Text longer
// than 50 characters is cut to its first 47 characters plus "...".
func DeriveTitle(text string) string {
	s := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
	s = strings.TrimSpace(s)
	if s == "" {
		return FallbackTitle
	}
	if utf8.RuneCountInString(s) > maxTitleLen {
		r := []rune(s)
		return string(r[:truncatedLen]) + titleEllipsis
	}
	return s
}
