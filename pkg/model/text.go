package model

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Command is a slash-command derived from message text.
type Command struct {
	Name     string
	Username string
	Args     Args
}

// Args is the raw argument text following a command.
type Args string

// Slice splits the arguments into at most n whitespace-delimited tokens.
// The nth token absorbs all remaining text.
func (a Args) Slice(n int) []string {
	rest := strings.TrimSpace(string(a))
	if n <= 0 || rest == "" {
		return []string{}
	}

	out := make([]string, 0, n)
	for len(out) < n-1 {
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			break
		}
		out = append(out, rest[:end])
		rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}

	return append(out, rest)
}

// String returns the trimmed argument text.
func (a Args) String() string {
	return strings.TrimSpace(string(a))
}

// ParseCommand derives a command from text of the form "/name[@username] rest".
func ParseCommand(text string) (*Command, bool) {
	if !strings.HasPrefix(text, "/") {
		return nil, false
	}

	body := text[1:]
	head := body
	rest := ""
	if end := strings.IndexFunc(body, unicode.IsSpace); end >= 0 {
		head = body[:end]
		rest = body[end:]
	}

	name, username, _ := strings.Cut(head, "@")
	if !isHandle(name) {
		return nil, false
	}
	if strings.Contains(head, "@") && !isHandle(username) {
		return nil, false
	}

	return &Command{
		Name:     name,
		Username: username,
		Args:     Args(strings.TrimSpace(rest)),
	}, true
}

// Mentions lists @handle occurrences in text order. Duplicates are kept.
type Mentions []string

// Count returns how many times handle was mentioned, ignoring case and a leading "@".
func (m Mentions) Count(handle string) int {
	handle = strings.TrimPrefix(handle, "@")
	count := 0
	for _, mention := range m {
		if strings.EqualFold(mention, handle) {
			count++
		}
	}
	return count
}

// Contains reports whether handle was mentioned at least once.
func (m Mentions) Contains(handle string) bool {
	return m.Count(handle) > 0
}

// ParseMentions scans text for @handles that start at a boundary and end at one.
func ParseMentions(text string) Mentions {
	var mentions Mentions

	prev := rune(-1)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r != '@' || !(prev == -1 || isBoundary(prev)) {
			prev = r
			i += size
			continue
		}

		start := i + size
		end := start
		for end < len(text) && isHandleByte(text[end]) {
			end++
		}

		if end > start {
			next, _ := utf8.DecodeRuneInString(text[end:])
			if end == len(text) || isBoundary(next) {
				mentions = append(mentions, text[start:end])
				prev = rune(text[end-1])
				i = end
				continue
			}
		}

		prev = r
		i += size
	}

	return mentions
}

// isBoundary reports whether r may sit next to a mention. Underscore is
// punctuation to unicode but part of a handle.
func isBoundary(r rune) bool {
	if r == '_' {
		return false
	}
	return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func isHandle(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHandleByte(s[i]) {
			return false
		}
	}
	return true
}

func isHandleByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
