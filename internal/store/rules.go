package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sunbk201/xlink/internal/config"
	"github.com/sunbk201/xlink/internal/rewrite"
)

var ErrRuleFields = errors.New("name, pattern and replacement are required")

// editMu serializes read-modify-write edits made through this process.
var editMu sync.Mutex

// NewRule trims the fields and returns an enabled rule with a fresh id.
func NewRule(name, pattern, replacement string) (config.Rule, error) {
	r := config.Rule{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Pattern:     strings.TrimSpace(pattern),
		Replacement: strings.TrimSpace(replacement),
		Enabled:     true,
	}
	if r.Name == "" || r.Pattern == "" || r.Replacement == "" {
		return config.Rule{}, ErrRuleFields
	}
	return r, nil
}

// FindRule returns the position of the rule whose id is ref, or whose
// 1-based position is ref. It returns -1 when nothing matches.
func FindRule(rules []config.Rule, ref string) int {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return -1
	}
	for i, r := range rules {
		if r.ID == ref {
			return i
		}
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(rules) {
		return n - 1
	}
	return -1
}

// AddRule appends r to the rule list.
func AddRule(ctx context.Context, s Store, r config.Rule) (config.Rule, error) {
	r, err := NewRule(r.Name, r.Pattern, r.Replacement)
	if err != nil {
		return config.Rule{}, err
	}
	err = editRules(ctx, s, func(rules []config.Rule) ([]config.Rule, error) {
		return append(rules, r), nil
	})
	return r, err
}

// ToggleRule flips the enabled flag of the referenced rule.
func ToggleRule(ctx context.Context, s Store, ref string) (config.Rule, error) {
	var out config.Rule
	err := editRules(ctx, s, func(rules []config.Rule) ([]config.Rule, error) {
		i := FindRule(rules, ref)
		if i < 0 {
			return nil, fmt.Errorf("rule %q: %w", ref, ErrNotFound)
		}
		rules[i].Enabled = !rules[i].Enabled
		out = rules[i]
		return rules, nil
	})
	return out, err
}

// DeleteRule removes the referenced rule.
func DeleteRule(ctx context.Context, s Store, ref string) (config.Rule, error) {
	var out config.Rule
	err := editRules(ctx, s, func(rules []config.Rule) ([]config.Rule, error) {
		i := FindRule(rules, ref)
		if i < 0 {
			return nil, fmt.Errorf("rule %q: %w", ref, ErrNotFound)
		}
		out = rules[i]
		return append(rules[:i], rules[i+1:]...), nil
	})
	return out, err
}

func editRules(ctx context.Context, s Store, fn func([]config.Rule) ([]config.Rule, error)) error {
	editMu.Lock()
	defer editMu.Unlock()

	settings, err := s.Get(ctx)
	if err != nil {
		return err
	}
	rules, err := fn(settings.CustomRewrites)
	if err != nil {
		return err
	}
	return s.Set(ctx, config.Patch{CustomRewrites: &rules})
}

// SetMode stores the canonical name of mode.
func SetMode(ctx context.Context, s Store, mode string) (rewrite.Mode, error) {
	m, err := rewrite.ParseMode(mode)
	if err != nil {
		return m, err
	}
	name := m.String()
	return m, s.Set(ctx, config.Patch{RewriteMode: &name})
}

// SetPrivacyMirrorHost stores host, trimmed. An empty host means the default.
func SetPrivacyMirrorHost(ctx context.Context, s Store, host string) (string, error) {
	host = config.NormalizeHost(host)
	if host == "" {
		host = config.DefaultNitterInstance
	}
	return host, s.Set(ctx, config.Patch{NitterInstance: &host})
}
