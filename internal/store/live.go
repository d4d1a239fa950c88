package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sunbk201/xlink/internal/rewrite"
)

// Live wraps a Store with a compiled rewrite.Config that is swapped
// atomically on every change, so a rewrite in flight keeps the snapshot it
// started with.
type Live struct {
	Store

	timeout time.Duration
	snap    atomic.Pointer[rewrite.Config]

	// mu orders refreshes so the last one stored read the newest settings.
	mu sync.Mutex
}

func NewLive(ctx context.Context, s Store, matchTimeout time.Duration) (*Live, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("store.Get: %w", err)
	}

	l := &Live{Store: s, timeout: matchTimeout}
	l.snap.Store(rewrite.NewConfig(settings, matchTimeout))
	s.OnChange(l.refresh)
	return l, nil
}

func (l *Live) refresh(changed []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	settings, err := l.Store.Get(context.Background())
	if err != nil {
		slog.Error("Refresh rewrite config", slog.Any("error", err))
		return
	}
	cfg := rewrite.NewConfig(settings, l.timeout)
	l.snap.Store(cfg)
	slog.Info("Rewrite config updated", slog.Any("keys", changed), slog.Any("config", cfg))
}

// Snapshot returns the current immutable config.
func (l *Live) Snapshot() *rewrite.Config {
	return l.snap.Load()
}

func (l *Live) Rewrite(raw string) string {
	return rewrite.Rewrite(raw, l.Snapshot())
}

func (l *Live) Evaluate(raw string) rewrite.Outcome {
	return rewrite.Evaluate(raw, l.Snapshot())
}
