package rewrite

import (
	"log/slog"
	"net/url"

	"github.com/sunbk201/xlink/internal/rule"
)

type Reason string

const (
	ReasonRewritten   Reason = "rewritten"
	ReasonUnchanged   Reason = "unchanged"
	ReasonUnparseable Reason = "unparseable"
	ReasonOutOfScope  Reason = "out-of-scope"
	ReasonRecovered   Reason = "recovered"
)

// Outcome is the full result of one evaluation. Output equals Input whenever
// no rewrite was applied.
type Outcome struct {
	Input  string      `json:"input"`
	Output string      `json:"output"`
	Mode   Mode        `json:"mode"`
	Reason Reason      `json:"reason"`
	Steps  []rule.Step `json:"steps,omitempty"`
}

// Changed reports whether the output differs from the input.
func (o Outcome) Changed() bool {
	return o.Output != o.Input
}

func (o Outcome) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("mode", o.Mode.String()),
		slog.String("reason", string(o.Reason)),
		slog.String("input", o.Input),
		slog.String("output", o.Output),
	)
}

// Rewrite returns the rewritten form of raw under cfg. It never fails: on any
// problem the input is returned unchanged.
func Rewrite(raw string, cfg *Config) string {
	return Evaluate(raw, cfg).Output
}

// Evaluate is Rewrite with the reason and, in ModeCustom, the per-rule steps.
func Evaluate(raw string, cfg *Config) (out Outcome) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out = Outcome{Input: raw, Output: raw, Mode: cfg.Mode, Reason: ReasonUnchanged}

	defer func() {
		if p := recover(); p != nil {
			slog.Error("Rewrite recovered", slog.String("url", raw), slog.Any("panic", p))
			out.Output = raw
			out.Reason = ReasonRecovered
		}
	}()

	u, err := url.Parse(raw)
	if err != nil {
		slog.Debug("url.Parse", slog.String("url", raw), slog.Any("error", err))
		out.Reason = ReasonUnparseable
		return out
	}
	if !InScope(u) {
		out.Reason = ReasonOutOfScope
		return out
	}

	switch cfg.Mode {
	case ModeMirrorA:
		out.Output = mirror(raw, MirrorAHost)
	case ModeMirrorB:
		out.Output = mirror(raw, MirrorBHost)
	case ModePrivacyMirror:
		out.Output = mirror(raw, cfg.privacyHost())
	case ModeCanonicalize:
		out.Output = canonicalize(raw, u)
	case ModeCustom:
		out.Output, out.Steps = cfg.Engine().Trace(raw)
	case ModePassthrough:
	default:
		slog.Warn("Unknown rewrite mode, link passes through", slog.Any("mode", cfg.Mode))
	}

	if out.Changed() {
		out.Reason = ReasonRewritten
	}
	return out
}

func mirror(raw, host string) string {
	s, err := replaceOrigin(raw, host)
	if err != nil {
		slog.Error("replaceOrigin", slog.String("url", raw), slog.Any("error", err))
		return raw
	}
	return s
}
