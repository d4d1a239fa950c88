package clipboard

import (
	"errors"
	"net/url"
	"strings"

	"github.com/atotto/clipboard"
)

var ErrUnsupported = errors.New("clipboard: no clipboard utility available")

// Clipboard is the system clipboard, or a fake in tests.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// System is the platform clipboard.
type System struct{}

func (System) ReadAll() (string, error) {
	if clipboard.Unsupported {
		return "", ErrUnsupported
	}
	return clipboard.ReadAll()
}

func (System) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	return clipboard.WriteAll(text)
}

const maxURLLength = 2048

// ExtractURL returns text as a link when the whole clipboard is a single
// http(s) URL, or "" otherwise.
func ExtractURL(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxURLLength || strings.ContainsAny(text, " \t\n\r") {
		return ""
	}
	lower := strings.ToLower(text)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return ""
	}
	u, err := url.Parse(text)
	if err != nil || u.Host == "" {
		return ""
	}
	return text
}

// StripQuery drops everything from the first '?' or '#'.
func StripQuery(link string) string {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		return link[:i]
	}
	return link
}
