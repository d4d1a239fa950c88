package rewrite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunbk201/xlink/internal/config"
)

func newTestConfig(t *testing.T, mode string, host string, rules ...config.Rule) *Config {
	t.Helper()
	return NewConfig(config.Settings{
		RewriteMode:    mode,
		NitterInstance: host,
		CustomRewrites: rules,
	}, time.Second)
}

func allConfigs(t *testing.T) []*Config {
	t.Helper()
	var cfgs []*Config
	for _, m := range Modes() {
		cfgs = append(cfgs, newTestConfig(t, m.String(), "nitter.example",
			config.Rule{Name: "all", Pattern: "/.*/", Replacement: "gone", Enabled: true},
		))
	}
	return append(cfgs, newTestConfig(t, "bogus", ""), nil)
}

func TestOutOfScopeIsUntouched(t *testing.T) {
	urls := []string{
		"https://example.com/u/status/1",
		"https://mobile.twitter.com/u/status/1",
		"https://fox.com/news",
		"https://vxtwitter.com/u/status/1",
		"https://twitter.com.evil.org/u/status/1",
		"https://x.co/u",
		"mailto:someone@x.com",
		"not a url",
		"",
	}
	for _, cfg := range allConfigs(t) {
		for _, u := range urls {
			assert.Equal(t, u, Rewrite(u, cfg), "url %q", u)
		}
	}
}

func TestUnparseableIsUntouched(t *testing.T) {
	cfg := newTestConfig(t, "vxtwitter", "")
	for _, u := range []string{"https://x.com/%zz", " https://x.com/u", "https://[::1"} {
		o := Evaluate(u, cfg)
		assert.Equal(t, u, o.Output)
		assert.Equal(t, ReasonUnparseable, o.Reason, u)
	}
}

func TestMirrorA(t *testing.T) {
	cfg := newTestConfig(t, "vxtwitter", "")
	tests := map[string]string{
		"https://twitter.com/u/status/1":          "https://vxtwitter.com/u/status/1",
		"http://www.twitter.com/u/status/1?s=20":  "https://vxtwitter.com/u/status/1?s=20",
		"https://x.com/u/status/1#frag":           "https://vxtwitter.com/u/status/1#frag",
		"https://www.x.com/u/status/1?a=%20b&c#f": "https://vxtwitter.com/u/status/1?a=%20b&c#f",
		"HTTPS://X.COM/U/Status/1":                "https://vxtwitter.com/U/Status/1",
		"https://x.com":                           "https://vxtwitter.com",
		"https://x.com:8443/u":                    "https://vxtwitter.com:8443/u",
	}
	for in, want := range tests {
		o := Evaluate(in, cfg)
		assert.Equal(t, want, o.Output, in)
		assert.Equal(t, ReasonRewritten, o.Reason, in)
	}
}

func TestMirrorB(t *testing.T) {
	cfg := newTestConfig(t, "fxtwitter", "")
	assert.Equal(t, "https://fxtwitter.com/u/status/1", Rewrite("https://x.com/u/status/1", cfg))
}

func TestMirrorUserinfoNotRewritten(t *testing.T) {
	cfg := newTestConfig(t, "vxtwitter", "")
	in := "https://x.com@x.com/u"
	assert.Equal(t, in, Rewrite(in, cfg))
}

func TestMirrorSecondApplicationIsNoop(t *testing.T) {
	for _, mode := range []string{"vxtwitter", "fxtwitter", "nitter"} {
		cfg := newTestConfig(t, mode, "nitter.example")
		once := Evaluate("https://x.com/u/status/1?s=20", cfg)
		require.True(t, once.Changed())

		twice := Evaluate(once.Output, cfg)
		assert.Equal(t, once.Output, twice.Output)
		assert.Equal(t, ReasonOutOfScope, twice.Reason)
	}
}

func TestPrivacyMirror(t *testing.T) {
	cfg := newTestConfig(t, "nitter", "nitter.example")
	got := Rewrite("https://x.com/u/status/5?s=20&t=abc", cfg)
	assert.Equal(t, "https://nitter.example/u/status/5?s=20&t=abc", got)
}

func TestPrivacyMirrorDefaultHost(t *testing.T) {
	cfg := newTestConfig(t, "nitter", "   ")
	assert.Equal(t, "https://nitter.net/u/status/5", Rewrite("https://twitter.com/u/status/5", cfg))

	cfg = &Config{Mode: ModePrivacyMirror}
	assert.Equal(t, "https://nitter.net/u/status/5", Rewrite("https://twitter.com/u/status/5", cfg))
}

func TestPrivacyMirrorHostIsLiteral(t *testing.T) {
	cfg := &Config{Mode: ModePrivacyMirror, PrivacyMirrorHost: "n$1.example"}
	assert.Equal(t, "https://n$1.example/u", Rewrite("https://x.com/u", cfg))
}

func TestCanonicalize(t *testing.T) {
	cfg := newTestConfig(t, "clean", "")
	tests := map[string]string{
		"https://twitter.com/u/status/5?s=20&ref_src=tw":               "https://twitter.com/u/status/5",
		"https://x.com/u/status/5?a=1&s=20&b=2&t=x&c=3":                "https://x.com/u/status/5?a=1&b=2&c=3",
		"https://x.com/u/status/5?ref_url=https%3A%2F%2Fa.b&z=%20#top": "https://x.com/u/status/5?z=%20#top",
		"https://x.com/u/status/5?b=2&a=1":                             "https://x.com/u/status/5?b=2&a=1",
		"https://x.com/u/status/5":                                     "https://x.com/u/status/5",
		"https://x.com/u/status/5?S=1":                                 "https://x.com/u/status/5?S=1",
		"https://x.com/u?s":                                            "https://x.com/u",
		"https://x.com/u?%73=1&k=v":                                    "https://x.com/u?k=v",
	}
	for in, want := range tests {
		assert.Equal(t, want, Rewrite(in, cfg), in)
	}
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	cfg := newTestConfig(t, "clean", "")
	for _, in := range []string{
		"https://twitter.com/u/status/5?s=20&ref_src=tw",
		"https://x.com/u/status/5?a=1&s=20&b=2&t=x&c=3#f",
		"https://x.com/u/status/5?a=1&&b=2",
	} {
		once := Rewrite(in, cfg)
		assert.Equal(t, once, Rewrite(once, cfg), in)
	}
}

func TestCustomEmptyRules(t *testing.T) {
	cfg := newTestConfig(t, "custom", "")
	in := "https://x.com/u/status/1"
	o := Evaluate(in, cfg)
	assert.Equal(t, in, o.Output)
	assert.Equal(t, ReasonUnchanged, o.Reason)
}

func TestCustomDisabledThenEnabled(t *testing.T) {
	r := config.Rule{Name: "r", Pattern: "https://{domain}", Replacement: "https://example.org"}
	in := "https://twitter.com/user/status/1"

	assert.Equal(t, in, Rewrite(in, newTestConfig(t, "custom", "", r)))

	r.Enabled = true
	assert.Equal(t, "https://example.org/user/status/1", Rewrite(in, newTestConfig(t, "custom", "", r)))
	assert.Equal(t, "https://example.org/user/status/1", Rewrite("https://www.x.com/user/status/1", newTestConfig(t, "custom", "", r)))
}

func TestCustomInvalidRuleDoesNotAbort(t *testing.T) {
	cfg := newTestConfig(t, "custom", "",
		config.Rule{Name: "bad", Pattern: "/[/", Replacement: "x", Enabled: true},
		config.Rule{Name: "good", Pattern: "https://{domain}", Replacement: "https://example.org", Enabled: true},
	)
	o := Evaluate("https://x.com/u/status/1", cfg)
	assert.Equal(t, "https://example.org/u/status/1", o.Output)
	require.Len(t, o.Steps, 2)
	assert.NotEmpty(t, o.Steps[0].Error)
	assert.Empty(t, o.Steps[1].Error)
}

func TestCustomSeesFullURL(t *testing.T) {
	cfg := newTestConfig(t, "custom", "",
		config.Rule{Name: "q", Pattern: `/\?.*#/`, Replacement: "#", Enabled: true},
	)
	assert.Equal(t, "https://x.com/u#f", Rewrite("https://x.com/u?s=1#f", cfg))
}

func TestPassthroughAndUnknownMode(t *testing.T) {
	in := "https://x.com/u/status/1?s=20"
	assert.Equal(t, in, Rewrite(in, newTestConfig(t, "original", "")))

	cfg := newTestConfig(t, "bogus", "")
	assert.Equal(t, ModePassthrough, cfg.Mode)
	assert.Equal(t, in, Rewrite(in, cfg))

	assert.Equal(t, in, Rewrite(in, &Config{Mode: Mode(99)}))
}

func TestNilConfigUsesDefaults(t *testing.T) {
	assert.Equal(t, "https://vxtwitter.com/u/status/1", Rewrite("https://x.com/u/status/1", nil))
}

func TestMissingSettingsUseDefaults(t *testing.T) {
	cfg := NewConfig(config.Settings{}, 0)
	assert.Equal(t, ModeMirrorA, cfg.Mode)
	assert.Equal(t, "nitter.net", cfg.PrivacyMirrorHost)
	assert.False(t, cfg.Engine().HasRules())
}

func TestConfigSnapshotIsStable(t *testing.T) {
	rules := []config.Rule{{Name: "r", Pattern: "status", Replacement: "post", Enabled: true}}
	cfg := NewConfig(config.Settings{RewriteMode: "custom", CustomRewrites: rules}, time.Second)

	rules[0].Replacement = "changed"
	assert.Equal(t, "https://x.com/u/post/1", Rewrite("https://x.com/u/status/1", cfg))
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"vxtwitter":      ModeMirrorA,
		"FXTWITTER":      ModeMirrorB,
		" nitter ":       ModePrivacyMirror,
		"clean":          ModeCanonicalize,
		"custom":         ModeCustom,
		"original":       ModePassthrough,
		"mirror-a":       ModeMirrorA,
		"mirror-b":       ModeMirrorB,
		"privacy-mirror": ModePrivacyMirror,
		"canonicalize":   ModeCanonicalize,
		"passthrough":    ModePassthrough,
	}
	for in, want := range tests {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("nope")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestModeText(t *testing.T) {
	for _, m := range Modes() {
		text, err := m.MarshalText()
		require.NoError(t, err)

		var back Mode
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, m, back)
		assert.NotEqual(t, "unknown", m.Description())
	}
	assert.Equal(t, "Mode(42)", Mode(42).String())
}

func TestIsSourceURL(t *testing.T) {
	assert.True(t, IsSourceURL("https://WWW.Twitter.com/u"))
	assert.True(t, IsSourceURL("https://x.com"))
	assert.False(t, IsSourceURL("https://nitter.net/u"))
	assert.False(t, IsSourceURL("%zz"))
}
