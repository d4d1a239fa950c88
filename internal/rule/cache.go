package rule

import (
	"time"

	"github.com/dlclark/regexp2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type cacheKey struct {
	pattern string
	dialect Dialect
	timeout time.Duration
}

type compiled struct {
	regex *regexp2.Regexp
	err   error
}

// Compiled patterns are shared between snapshots; regexp2.Regexp is safe for
// concurrent use.
var patternCache = expirable.NewLRU[cacheKey, compiled](512, nil, 30*time.Minute)

func compilePattern(p Pattern, timeout time.Duration) (*regexp2.Regexp, error) {
	key := cacheKey{pattern: p.String(), dialect: p.Dialect(), timeout: timeout}
	if c, ok := patternCache.Get(key); ok {
		return c.regex, c.err
	}

	c := compiled{}
	expr, opts, err := p.Expr()
	if err == nil {
		c.regex, err = regexp2.Compile(expr, opts)
	}
	if err != nil {
		c.err = err
	} else if timeout > 0 {
		c.regex.MatchTimeout = timeout
	}

	patternCache.Add(key, c)
	return c.regex, c.err
}

// PurgeCache drops every cached compiled pattern.
func PurgeCache() {
	patternCache.Purge()
}
