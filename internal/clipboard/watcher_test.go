package clipboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunbk201/xlink/internal/config"
	"github.com/sunbk201/xlink/internal/rewrite"
)

type fakeClipboard struct {
	mu      sync.Mutex
	text    string
	writes  []string
	readErr error
}

func (f *fakeClipboard) ReadAll() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.readErr
}

func (f *fakeClipboard) WriteAll(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
	f.writes = append(f.writes, text)
	return nil
}

func (f *fakeClipboard) copy(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
}

func (f *fakeClipboard) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.writes...)
}

type staticRewriter struct {
	cfg *rewrite.Config
}

func (s staticRewriter) Evaluate(raw string) rewrite.Outcome {
	return rewrite.Evaluate(raw, s.cfg)
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes []rewrite.Outcome
}

func (c *countingRecorder) Record(o rewrite.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
}

func newRewriter(mode string) staticRewriter {
	return staticRewriter{cfg: rewrite.NewConfig(config.Settings{RewriteMode: mode}, time.Second)}
}

func TestExtractURL(t *testing.T) {
	tests := map[string]string{
		"https://x.com/u/status/1":       "https://x.com/u/status/1",
		"  https://x.com/u/status/1 \n":  "https://x.com/u/status/1",
		"HTTP://x.com/u":                 "HTTP://x.com/u",
		"look https://x.com/u":           "",
		"https://x.com/u\nhttps://x.com": "",
		"ftp://x.com/u":                  "",
		"https://":                       "",
		"":                               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractURL(in), in)
	}
}

func TestStripQuery(t *testing.T) {
	assert.Equal(t, "https://x.com/u/status/1", StripQuery("https://x.com/u/status/1?s=20#x"))
	assert.Equal(t, "https://x.com/u", StripQuery("https://x.com/u#frag"))
	assert.Equal(t, "https://x.com/u", StripQuery("https://x.com/u"))
}

func TestPollRewritesNewLink(t *testing.T) {
	cb := &fakeClipboard{}
	rec := &countingRecorder{}
	w := NewWatcher(cb, newRewriter("vxtwitter"), Options{Recorder: rec})

	cb.copy("https://x.com/u/status/1")
	o, wrote, err := w.Poll()
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, rewrite.ReasonRewritten, o.Reason)
	assert.Equal(t, []string{"https://vxtwitter.com/u/status/1"}, cb.written())
	assert.Len(t, rec.outcomes, 1)

	// Our own write is not processed again.
	_, wrote, err = w.Poll()
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Len(t, rec.outcomes, 1)
}

func TestPollLeavesOtherContentAlone(t *testing.T) {
	cb := &fakeClipboard{}
	w := NewWatcher(cb, newRewriter("vxtwitter"), Options{})

	for _, text := range []string{
		"hello world",
		"https://example.com/page",
		"  https://vxtwitter.com/u/status/1  ",
	} {
		cb.copy(text)
		_, wrote, err := w.Poll()
		require.NoError(t, err)
		assert.False(t, wrote, text)
	}
	assert.Empty(t, cb.written())
}

func TestPollUnchangedInModeOriginal(t *testing.T) {
	cb := &fakeClipboard{}
	w := NewWatcher(cb, newRewriter("original"), Options{})

	cb.copy(" https://x.com/u/status/1?s=20 ")
	_, wrote, err := w.Poll()
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Empty(t, cb.written())
}

func TestPollStripQuery(t *testing.T) {
	cb := &fakeClipboard{}
	w := NewWatcher(cb, newRewriter("original"), Options{StripQuery: true})

	cb.copy("https://x.com/u/status/1?s=20")
	_, wrote, err := w.Poll()
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, []string{"https://x.com/u/status/1"}, cb.written())

	cb.copy("https://example.com/?q=1")
	_, wrote, err = w.Poll()
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestPrimeSkipsExistingContent(t *testing.T) {
	cb := &fakeClipboard{text: "https://x.com/u/status/1"}
	w := NewWatcher(cb, newRewriter("vxtwitter"), Options{})
	require.NoError(t, w.Prime())

	_, wrote, err := w.Poll()
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestPollReadError(t *testing.T) {
	cb := &fakeClipboard{readErr: errors.New("no display")}
	w := NewWatcher(cb, newRewriter("vxtwitter"), Options{})
	_, _, err := w.Poll()
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	cb := &fakeClipboard{text: "before"}
	w := NewWatcher(cb, newRewriter("fxtwitter"), Options{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cb.copy("https://twitter.com/u/status/9")
	require.Eventually(t, func() bool {
		return len(cb.written()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "https://fxtwitter.com/u/status/9", cb.written()[0])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
