package rule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

type Dialect string

const (
	DialectRegex   Dialect = "REGEX"
	DialectLiteral Dialect = "LITERAL"
)

const (
	// DomainPlaceholder expands to DomainExpr in literal patterns.
	DomainPlaceholder = "{domain}"
	DomainExpr        = `(www\.)?(twitter|x)\.com`

	regexFlags = "gimsuy"
)

var (
	ErrDuplicateFlag = errors.New("duplicate regex flag")
	ErrUnknownFlag   = errors.New("unknown regex flag")
)

// Pattern is either a RegexPattern or a LiteralPattern.
type Pattern interface {
	Dialect() Dialect
	String() string
	// Expr is the expression handed to the regex compiler.
	Expr() (string, regexp2.RegexOptions, error)
}

// RegexPattern is the /body/flags dialect.
type RegexPattern struct {
	Body  string
	Flags string
}

func (p RegexPattern) Dialect() Dialect { return DialectRegex }

func (p RegexPattern) String() string { return "/" + p.Body + "/" + p.Flags }

func (p RegexPattern) Expr() (string, regexp2.RegexOptions, error) {
	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	sticky := false
	seen := make(map[rune]struct{}, len(p.Flags))
	for _, f := range p.Flags {
		if _, dup := seen[f]; dup {
			return "", 0, fmt.Errorf("%w: %q", ErrDuplicateFlag, f)
		}
		seen[f] = struct{}{}

		switch f {
		case 'g':
			// substitution is always global
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		case 'u':
			opts |= regexp2.Unicode
		case 'y':
			sticky = true
		default:
			return "", 0, fmt.Errorf("%w: %q", ErrUnknownFlag, f)
		}
	}

	body := p.Body
	if sticky {
		// every match must start where the previous one ended
		body = `\G(?:` + body + `)`
	}
	return body, opts, nil
}

// LiteralPattern is any pattern that is not in the regex dialect. After
// placeholder expansion it is still compiled as a regular expression, so
// metacharacters typed by the user keep their regex meaning.
type LiteralPattern struct {
	Text string
}

func (p LiteralPattern) Dialect() Dialect { return DialectLiteral }

func (p LiteralPattern) String() string { return p.Text }

func (p LiteralPattern) Expr() (string, regexp2.RegexOptions, error) {
	return strings.ReplaceAll(p.Text, DomainPlaceholder, DomainExpr), regexp2.ECMAScript, nil
}

// ParsePattern decides the dialect of a rule pattern. A pattern is in the
// regex dialect when it starts with '/' and ends with an unescaped '/'
// followed only by flag characters, with a non-empty body in between.
func ParsePattern(s string) Pattern {
	if len(s) >= 3 && s[0] == '/' {
		end := strings.LastIndexByte(s, '/')
		if end > 1 && isFlags(s[end+1:]) && !isEscaped(s, end) {
			return RegexPattern{Body: s[1:end], Flags: s[end+1:]}
		}
	}
	return LiteralPattern{Text: s}
}

func isFlags(s string) bool {
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(regexFlags, s[i]) < 0 {
			return false
		}
	}
	return true
}

// isEscaped reports whether s[i] is preceded by an odd number of backslashes.
func isEscaped(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}
