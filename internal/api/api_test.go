package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunbk201/xlink/internal/config"
	applog "github.com/sunbk201/xlink/internal/log"
	"github.com/sunbk201/xlink/internal/rewrite"
	"github.com/sunbk201/xlink/internal/statistics"
	"github.com/sunbk201/xlink/internal/store"
)

type testEnv struct {
	srv  *APIServer
	http *httptest.Server
	live *store.Live
	lb   *applog.Broadcaster
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()
	dir := t.TempDir()

	st, err := store.OpenFile(filepath.Join(dir, "settings.yaml"), config.Settings{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	live, err := store.NewLive(context.Background(), st, time.Second)
	require.NoError(t, err)

	cfg := &config.Config{
		MatchTimeout: time.Second,
		API:          config.APIConfig{Listen: "127.0.0.1:0", Secret: secret},
	}
	lb := applog.NewBroadcaster()
	srv := New("v-test", cfg, live, statistics.New(dir), lb)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: srv, http: ts, live: live, lb: lb}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, out any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.http.URL+path, rd)
	require.NoError(t, err)
	resp, err := e.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestVersion(t *testing.T) {
	e := newTestEnv(t, "")
	var out map[string]string
	resp := e.do(t, http.MethodGet, "/version", nil, &out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "v-test", out["version"])
}

func TestGetAndUpdateConfig(t *testing.T) {
	e := newTestEnv(t, "")

	var cfg configResponse
	e.do(t, http.MethodGet, "/config", nil, &cfg)
	assert.Equal(t, "vxtwitter", cfg.RewriteMode)
	assert.Equal(t, "nitter.net", cfg.NitterInstance)
	assert.Equal(t, "vxtwitter", cfg.ActiveMode)

	resp := e.do(t, http.MethodPut, "/config", map[string]string{
		"rewriteMode":    "Privacy-Mirror",
		"nitterInstance": " https://nitter.example/ ",
	}, &cfg)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nitter", cfg.RewriteMode)
	assert.Equal(t, "nitter.example", cfg.NitterInstance)
	assert.Equal(t, "nitter", cfg.ActiveMode)

	assert.Equal(t, "https://nitter.example/u/status/5?s=20&t=abc", e.live.Rewrite("https://x.com/u/status/5?s=20&t=abc"))
}

func TestUpdateConfigRejectsBadInput(t *testing.T) {
	e := newTestEnv(t, "")

	var out map[string]string
	resp := e.do(t, http.MethodPut, "/config", map[string]string{"rewriteMode": "bogus"}, &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "unknown rewrite mode")

	resp = e.do(t, http.MethodPut, "/config", map[string]any{
		"customRewrites": []map[string]any{{"pattern": "a", "enabled": true}},
	}, &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPut, "/config", map[string]any{"unknown": 1}, &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRewrite(t *testing.T) {
	e := newTestEnv(t, "")

	var o rewrite.Outcome
	resp := e.do(t, http.MethodPost, "/rewrite", rewriteRequest{URL: "https://twitter.com/u/status/1"}, &o)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://vxtwitter.com/u/status/1", o.Output)
	assert.Equal(t, rewrite.ModeMirrorA, o.Mode)
	assert.Equal(t, rewrite.ReasonRewritten, o.Reason)

	var many []rewrite.Outcome
	e.do(t, http.MethodPost, "/rewrite", rewriteRequest{URLs: []string{"https://x.com/a", "https://example.com/b"}}, &many)
	require.Len(t, many, 2)
	assert.Equal(t, "https://vxtwitter.com/a", many[0].Output)
	assert.Equal(t, "https://example.com/b", many[1].Output)
	assert.Equal(t, rewrite.ReasonOutOfScope, many[1].Reason)
}

func TestRulesLifecycle(t *testing.T) {
	e := newTestEnv(t, "")
	_, err := store.SetMode(context.Background(), e.live, "custom")
	require.NoError(t, err)

	var added config.Rule
	resp := e.do(t, http.MethodPost, "/rules", config.Rule{Name: " n ", Pattern: "https://{domain}", Replacement: "https://example.org"}, &added)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "n", added.Name)
	assert.True(t, added.Enabled)
	assert.NotEmpty(t, added.ID)

	var bad config.Rule
	e.do(t, http.MethodPost, "/rules", config.Rule{Name: "broken", Pattern: "/[/", Replacement: "x"}, &bad)

	var rules []ruleView
	e.do(t, http.MethodGet, "/rules", nil, &rules)
	require.Len(t, rules, 2)
	assert.Equal(t, 1, rules[0].Index)
	assert.Equal(t, "LITERAL", rules[0].Dialect)
	assert.Empty(t, rules[0].Error)
	assert.Equal(t, "REGEX", rules[1].Dialect)
	assert.NotEmpty(t, rules[1].Error)

	assert.Equal(t, "https://example.org/u", e.live.Rewrite("https://x.com/u"))

	var toggled config.Rule
	resp = e.do(t, http.MethodPatch, "/rules/"+added.ID+"/toggle", nil, &toggled)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, toggled.Enabled)
	assert.Equal(t, "https://x.com/u", e.live.Rewrite("https://x.com/u"))

	var deleted config.Rule
	resp = e.do(t, http.MethodDelete, "/rules/2", nil, &deleted)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "broken", deleted.Name)

	var out map[string]string
	resp = e.do(t, http.MethodDelete, "/rules/nope", nil, &out)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/rules", config.Rule{Name: "x", Pattern: "y"}, &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestModesAndStats(t *testing.T) {
	e := newTestEnv(t, "")

	var modes []modeInfo
	e.do(t, http.MethodGet, "/modes", nil, &modes)
	require.Len(t, modes, len(rewrite.Modes()))
	assert.Equal(t, "vxtwitter", modes[0].Name)

	var stats map[string]json.RawMessage
	resp := e.do(t, http.MethodGet, "/stats", nil, &stats)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, stats, "rewrite")
	assert.Contains(t, stats, "pass")
}

func TestAuth(t *testing.T) {
	e := newTestEnv(t, "s3cret")

	resp := e.do(t, http.MethodGet, "/version", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, e.http.URL+"/version", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = e.http.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/version?secret=s3cret", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogsHTTPStream(t *testing.T) {
	e := newTestEnv(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.http.URL+"/logs?q=keep", nil)
	require.NoError(t, err)
	resp, err := e.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return e.lb.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	_, _ = e.lb.Write([]byte("drop this\n"))
	_, _ = e.lb.Write([]byte("keep this\n"))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "keep this\n", line)
}

func TestLogsWebSocket(t *testing.T) {
	e := newTestEnv(t, "")

	wsURL := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/logs"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return e.lb.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	_, _ = e.lb.Write([]byte("hello\n"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, "hello\n", string(msg))
}
