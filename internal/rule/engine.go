package rule

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sunbk201/xlink/internal/config"
)

// Step records what one rule did during a fold.
type Step struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Dialect  string `json:"dialect,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
	Input    string `json:"input,omitempty"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Engine is an ordered, compiled snapshot of custom rules.
type Engine struct {
	rules []*Rule
}

// NewEngine compiles ruleSet, or rulesJSON when ruleSet is empty. The slice
// is copied so later changes by the caller do not leak into the snapshot.
func NewEngine(rulesJSON string, ruleSet []config.Rule, timeout time.Duration) (*Engine, error) {
	rulesCfg := ruleSet
	if len(rulesCfg) == 0 {
		if rulesJSON == "" {
			return &Engine{rules: []*Rule{}}, nil
		}
		if err := json.Unmarshal([]byte(rulesJSON), &rulesCfg); err != nil {
			return nil, fmt.Errorf("failed to parse rules JSON: %w", err)
		}
	}

	rules := make([]*Rule, 0, len(rulesCfg))
	for i, rc := range rulesCfg {
		r := Compile(i, rc, timeout)
		if err := r.Err(); err != nil {
			slog.Warn("Invalid rule", slog.Any("rule", r), slog.Any("error", err))
		}
		rules = append(rules, r)
	}
	return &Engine{rules: rules}, nil
}

// Apply folds every enabled rule over input in order, feeding each output
// into the next rule. A failing rule leaves the accumulator unchanged.
func (e *Engine) Apply(input string) string {
	out, _ := e.fold(input, false)
	return out
}

// Trace is Apply plus a per-rule record.
func (e *Engine) Trace(input string) (string, []Step) {
	return e.fold(input, true)
}

func (e *Engine) fold(input string, trace bool) (string, []Step) {
	var steps []Step
	if trace {
		steps = make([]Step, 0, len(e.rules))
	}

	acc := input
	for _, r := range e.rules {
		if !r.Enabled {
			if trace {
				steps = append(steps, Step{Index: r.index, Name: r.Name, Disabled: true})
			}
			continue
		}

		out, err := r.Apply(acc)
		if err != nil {
			slog.Warn("Skip rule", slog.Any("rule", r), slog.Any("error", err))
		}
		if trace {
			step := Step{Index: r.index, Name: r.Name, Input: acc, Output: out}
			if p := r.Pattern(); p != nil {
				step.Dialect = string(p.Dialect())
			}
			if err != nil {
				step.Error = err.Error()
			}
			steps = append(steps, step)
		}
		if err == nil {
			acc = out
		}
	}
	return acc, steps
}

// Rules returns the compiled rules in order.
func (e *Engine) Rules() []*Rule {
	out := make([]*Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

func (e *Engine) HasRules() bool {
	for _, r := range e.rules {
		if r.Enabled {
			return true
		}
	}
	return false
}

// Apply is the one-shot form of Engine.Apply over an uncompiled rule list.
// Compiled patterns are served from the shared cache.
func Apply(input string, rules []config.Rule) string {
	e, _ := NewEngine("", rules, config.DefaultMatchTimeout)
	return e.Apply(input)
}
