package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Store keys shared by every configuration store backend.
const (
	KeyRewriteMode    = "rewrite-mode"
	KeyNitterInstance = "nitter-instance"
	KeyCustomRewrites = "custom-rewrites"
)

const (
	DefaultRewriteMode    = "vxtwitter"
	DefaultNitterInstance = "nitter.net"
	DefaultMatchTimeout   = 100 * time.Millisecond
	DefaultWatchInterval  = 500 * time.Millisecond
	DefaultAPIListen      = "127.0.0.1:9393"
)

type StoreBackend string

const (
	StoreBackendFile   StoreBackend = "file"
	StoreBackendSQLite StoreBackend = "sqlite"
)

// Rule is a user-authored pattern/replacement pair.
type Rule struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty" mapstructure:"id"`
	Name        string `json:"name" yaml:"name" mapstructure:"name" validate:"required"`
	Pattern     string `json:"pattern" yaml:"pattern" mapstructure:"pattern" validate:"required"`
	Replacement string `json:"replacement" yaml:"replacement" mapstructure:"replacement"`
	Enabled     bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

func (r Rule) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", r.ID),
		slog.String("name", r.Name),
		slog.String("pattern", r.Pattern),
		slog.String("replacement", r.Replacement),
		slog.Bool("enabled", r.Enabled),
	)
}

// Settings holds the keys owned by the configuration store.
type Settings struct {
	RewriteMode    string `json:"rewriteMode" yaml:"rewrite-mode" mapstructure:"rewrite-mode"`
	NitterInstance string `json:"nitterInstance" yaml:"nitter-instance" mapstructure:"nitter-instance"`
	CustomRewrites []Rule `json:"customRewrites" yaml:"custom-rewrites" mapstructure:"custom-rewrites"`
}

// DefaultSettings is what a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{
		RewriteMode:    DefaultRewriteMode,
		NitterInstance: DefaultNitterInstance,
		CustomRewrites: []Rule{},
	}
}

// Normalize fills missing keys with defaults. Unknown rewrite modes are kept
// as-is and resolved to passthrough by the rewriter.
func (s Settings) Normalize() Settings {
	s.RewriteMode = strings.ToLower(strings.TrimSpace(s.RewriteMode))
	if s.RewriteMode == "" {
		s.RewriteMode = DefaultRewriteMode
	}
	s.NitterInstance = NormalizeHost(s.NitterInstance)
	if s.NitterInstance == "" {
		s.NitterInstance = DefaultNitterInstance
	}
	if s.CustomRewrites == nil {
		s.CustomRewrites = []Rule{}
	}
	return s
}

// Clone returns a deep copy so callers can hand out snapshots.
func (s Settings) Clone() Settings {
	c := s
	if s.CustomRewrites != nil {
		c.CustomRewrites = make([]Rule, len(s.CustomRewrites))
		copy(c.CustomRewrites, s.CustomRewrites)
	}
	return c
}

// NormalizeHost trims whitespace, an optional scheme and trailing slashes.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimRight(host, "/")
}

// Patch is a partial update of Settings. Nil fields are left untouched.
type Patch struct {
	RewriteMode    *string `json:"rewriteMode,omitempty"`
	NitterInstance *string `json:"nitterInstance,omitempty"`
	CustomRewrites *[]Rule `json:"customRewrites,omitempty"`
}

// Empty reports whether the patch carries no key.
func (p Patch) Empty() bool {
	return p.RewriteMode == nil && p.NitterInstance == nil && p.CustomRewrites == nil
}

// Apply returns s with the patch applied, normalized.
func (s Settings) Apply(p Patch) Settings {
	out := s.Clone()
	if p.RewriteMode != nil {
		out.RewriteMode = *p.RewriteMode
	}
	if p.NitterInstance != nil {
		out.NitterInstance = *p.NitterInstance
	}
	if p.CustomRewrites != nil {
		out.CustomRewrites = append([]Rule{}, (*p.CustomRewrites)...)
	}
	return out.Normalize()
}

// ChangedKeys lists the store keys whose values differ between a and b.
func ChangedKeys(a, b Settings) []string {
	var changed []string
	if a.RewriteMode != b.RewriteMode {
		changed = append(changed, KeyRewriteMode)
	}
	if a.NitterInstance != b.NitterInstance {
		changed = append(changed, KeyNitterInstance)
	}
	if !rulesEqual(a.CustomRewrites, b.CustomRewrites) {
		changed = append(changed, KeyCustomRewrites)
	}
	return changed
}

func rulesEqual(a, b []Rule) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type StoreConfig struct {
	Backend StoreBackend `mapstructure:"backend" yaml:"backend" validate:"oneof=file sqlite"`
	Path    string       `mapstructure:"path" yaml:"path,omitempty"`
}

type APIConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen" validate:"required,hostname_port"`
	Secret string `mapstructure:"secret" yaml:"secret,omitempty"`
}

type StatsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

type Config struct {
	LogLevel string `mapstructure:"log-level" yaml:"log-level" validate:"oneof=debug info warn error"`

	Settings           `mapstructure:",squash" yaml:",inline"`
	CustomRewritesJSON string `mapstructure:"custom-rewrites-json" yaml:"-"`

	MatchTimeout  time.Duration `mapstructure:"match-timeout" yaml:"match-timeout" validate:"gte=0"`
	WatchInterval time.Duration `mapstructure:"watch-interval" yaml:"watch-interval" validate:"gt=0"`
	StripQuery    bool          `mapstructure:"strip-query" yaml:"strip-query"`

	Store StoreConfig `mapstructure:"store" yaml:"store"`
	API   APIConfig   `mapstructure:"api" yaml:"api"`
	Stats StatsConfig `mapstructure:"stats" yaml:"stats"`
}

var validate = validator.New()

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	return validate
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log-level", "info")
	v.SetDefault(KeyRewriteMode, DefaultRewriteMode)
	v.SetDefault(KeyNitterInstance, DefaultNitterInstance)
	v.SetDefault("match-timeout", DefaultMatchTimeout)
	v.SetDefault("watch-interval", DefaultWatchInterval)
	v.SetDefault("store.backend", string(StoreBackendFile))
	v.SetDefault("api.listen", DefaultAPIListen)
	v.SetDefault("stats.enabled", true)
}

// DecodeHook is shared by every viper.Unmarshal in the module.
func DecodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// BuildConfigFromViper decodes the global viper state into a Config.
func BuildConfigFromViper() (*Config, error) {
	return BuildConfig(viper.GetViper())
}

func BuildConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, DecodeHook()); err != nil {
		return nil, fmt.Errorf("viper.Unmarshal: %w", err)
	}

	if cfg.CustomRewritesJSON != "" {
		var rules []Rule
		if err := json.Unmarshal([]byte(cfg.CustomRewritesJSON), &rules); err != nil {
			return nil, fmt.Errorf("failed to parse custom rewrites JSON: %w", err)
		}
		cfg.CustomRewrites = rules
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Store.Backend = StoreBackend(strings.ToLower(string(cfg.Store.Backend)))
	cfg.Settings = cfg.Settings.Normalize()

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("Log Level", c.LogLevel),
		slog.String("Rewrite Mode", c.RewriteMode),
		slog.String("Nitter Instance", c.NitterInstance),
		slog.Int("Custom Rewrites", len(c.CustomRewrites)),
		slog.Duration("Match Timeout", c.MatchTimeout),
		slog.String("Store Backend", string(c.Store.Backend)),
		slog.String("Store Path", c.Store.Path),
		slog.String("API Listen", c.API.Listen),
		slog.Bool("Stats", c.Stats.Enabled),
	)
}
