package rewrite

import (
	"net/url"
	"strings"

	"github.com/dlclark/regexp2"
)

const (
	MirrorAHost = "vxtwitter.com"
	MirrorBHost = "fxtwitter.com"
)

var sourceHosts = map[string]struct{}{
	"twitter.com":     {},
	"www.twitter.com": {},
	"x.com":           {},
	"www.x.com":       {},
}

// originRegex matches the scheme and source host at the start of a URL, up to
// the port, path, query, fragment or end.
var originRegex = regexp2.MustCompile(`^https?://(www\.)?(twitter|x)\.com(?=[:/?#]|$)`, regexp2.IgnoreCase)

// InScope reports whether u points at one of the source hosts.
func InScope(u *url.URL) bool {
	_, ok := sourceHosts[strings.ToLower(u.Hostname())]
	return ok
}

// IsSourceURL is InScope for a raw string.
func IsSourceURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return InScope(u)
}

// replaceOrigin swaps the scheme and host prefix for https://host. Path, query
// and fragment are kept byte for byte.
func replaceOrigin(raw, host string) (string, error) {
	origin := "https://" + host
	return originRegex.ReplaceFunc(raw, func(regexp2.Match) string {
		return origin
	}, -1, 1)
}
