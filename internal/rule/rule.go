package rule

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/sunbk201/xlink/internal/config"
)

type Op string

const (
	OpValidate Op = "validate"
	OpCompile  Op = "compile"
	OpReplace  Op = "replace"
)

// RuleError describes why a single rule left its input untouched.
type RuleError struct {
	Index   int
	Name    string
	Pattern string
	Op      Op
	Err     error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule #%d %q %s %q: %v", e.Index, e.Name, e.Op, e.Pattern, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// Rule is a config.Rule with its pattern dialect decided and compiled.
type Rule struct {
	config.Rule

	index   int
	pattern Pattern
	regex   *regexp2.Regexp
	err     *RuleError
}

// Compile validates and compiles one rule. Disabled rules are neither
// validated nor compiled. A rule that fails keeps its error and is skipped
// by the engine.
func Compile(index int, cfg config.Rule, timeout time.Duration) *Rule {
	r := &Rule{Rule: cfg, index: index}
	if !cfg.Enabled {
		return r
	}

	if err := config.Validator().Struct(cfg); err != nil {
		r.err = r.newError(OpValidate, err)
		return r
	}

	r.pattern = ParsePattern(cfg.Pattern)
	regex, err := compilePattern(r.pattern, timeout)
	if err != nil {
		r.err = r.newError(OpCompile, err)
		return r
	}
	r.regex = regex
	return r
}

// Check compiles cfg as if it were enabled and returns what would make the
// engine skip it.
func Check(index int, cfg config.Rule, timeout time.Duration) (Dialect, error) {
	cfg.Enabled = true
	r := Compile(index, cfg, timeout)
	var dialect Dialect
	if r.pattern != nil {
		dialect = r.pattern.Dialect()
	}
	return dialect, r.Err()
}

func (r *Rule) newError(op Op, err error) *RuleError {
	return &RuleError{
		Index:   r.index,
		Name:    r.Name,
		Pattern: r.Rule.Pattern,
		Op:      op,
		Err:     err,
	}
}

// Pattern returns the parsed pattern, nil for disabled or invalid rules.
func (r *Rule) Pattern() Pattern {
	return r.pattern
}

// Err returns the validation or compile error, if any.
func (r *Rule) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// Apply runs the global substitution of this rule over input. Any failure,
// including a panic inside the regex library, comes back as a *RuleError.
func (r *Rule) Apply(input string) (out string, err error) {
	if r.err != nil {
		return input, r.err
	}
	if r.regex == nil {
		return input, nil
	}

	defer func() {
		if p := recover(); p != nil {
			out = input
			err = r.newError(OpReplace, fmt.Errorf("panic: %v", p))
		}
	}()

	out, rerr := r.regex.Replace(input, translateReplacement(r.Replacement), -1, -1)
	if rerr != nil {
		return input, r.newError(OpReplace, rerr)
	}
	return out, nil
}

func (r *Rule) LogValue() slog.Value {
	dialect := ""
	if r.pattern != nil {
		dialect = string(r.pattern.Dialect())
	}
	return slog.GroupValue(
		slog.Int("index", r.index),
		slog.String("name", r.Name),
		slog.String("dialect", dialect),
		slog.String("pattern", r.Rule.Pattern),
		slog.String("replacement", r.Replacement),
		slog.Bool("enabled", r.Enabled),
	)
}

// translateReplacement maps a JavaScript style replacement onto the syntax
// understood by regexp2. $1, $&, $`, $' and $$ mean the same in both. $<name>
// becomes ${name}. $0, $_, $+ and ${ are literal text in JavaScript but
// substitutions in regexp2, so their dollar is escaped.
func translateReplacement(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if s[i] != '$' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch next := s[i+1]; {
		case next == '$':
			b.WriteString("$$")
			i++
		case next == '_' || next == '+' || next == '{':
			b.WriteString("$$")
		case next == '0' && !(i+2 < len(s) && s[i+2] >= '1' && s[i+2] <= '9'):
			// $01..$09 are two-digit group references
			b.WriteString("$$")
		case next == '<':
			end := strings.IndexByte(s[i+2:], '>')
			if end > 0 && isGroupName(s[i+2:i+2+end]) {
				b.WriteString("${" + s[i+2:i+2+end] + "}")
				i += 2 + end
				continue
			}
			b.WriteString("$$")
		default:
			b.WriteByte('$')
		}
	}
	return b.String()
}

func isGroupName(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		letter := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !letter && (i == 0 || c < '0' || c > '9') {
			return false
		}
	}
	return s != ""
}
