package rewrite

import (
	"log/slog"
	"time"

	"github.com/sunbk201/xlink/internal/config"
	"github.com/sunbk201/xlink/internal/rule"
)

// Config is an immutable snapshot consumed by one or more Rewrite calls.
type Config struct {
	Mode              Mode
	PrivacyMirrorHost string

	engine *rule.Engine
}

// NewConfig builds a snapshot from store settings. Missing keys fall back to
// defaults and an unknown stored mode resolves to ModePassthrough. Custom
// rules are copied and compiled here, once.
func NewConfig(s config.Settings, matchTimeout time.Duration) *Config {
	s = s.Normalize()

	mode, err := ParseMode(s.RewriteMode)
	if err != nil {
		slog.Warn("Unknown rewrite mode, links pass through", slog.String("mode", s.RewriteMode))
	}

	if matchTimeout <= 0 {
		matchTimeout = config.DefaultMatchTimeout
	}
	engine, _ := rule.NewEngine("", s.CustomRewrites, matchTimeout)

	return &Config{
		Mode:              mode,
		PrivacyMirrorHost: s.NitterInstance,
		engine:            engine,
	}
}

// DefaultConfig is the snapshot used when the store is empty.
func DefaultConfig() *Config {
	return NewConfig(config.DefaultSettings(), config.DefaultMatchTimeout)
}

// Engine returns the compiled custom rules of this snapshot.
func (c *Config) Engine() *rule.Engine {
	if c.engine == nil {
		e, _ := rule.NewEngine("", nil, config.DefaultMatchTimeout)
		return e
	}
	return c.engine
}

func (c *Config) privacyHost() string {
	host := config.NormalizeHost(c.PrivacyMirrorHost)
	if host == "" {
		return config.DefaultNitterInstance
	}
	return host
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("mode", c.Mode.String()),
		slog.String("privacy_mirror_host", c.PrivacyMirrorHost),
		slog.Int("rules", len(c.Engine().Rules())),
	)
}
