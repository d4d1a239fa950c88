package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sunbk201/xlink/internal/config"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrClosed   = errors.New("store: closed")
)

// Store persists the rewrite settings. Missing keys read back as defaults.
type Store interface {
	Get(ctx context.Context) (config.Settings, error)
	Set(ctx context.Context, p config.Patch) error
	// OnChange registers fn to be called with the keys that changed, after the
	// change is visible to Get. Changes made by other processes are reported
	// too.
	OnChange(fn func(changed []string))
	Close() error
}

// Open opens the backend named in sc. A store that does not exist yet is
// seeded with seed.
func Open(sc config.StoreConfig, seed config.Settings) (Store, error) {
	path := sc.Path
	if path == "" {
		path = DefaultPath(sc.Backend)
	}
	switch sc.Backend {
	case config.StoreBackendSQLite:
		return OpenSQLite(path, seed, DefaultPollInterval)
	case config.StoreBackendFile, "":
		return OpenFile(path, seed)
	default:
		return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}

// DefaultPath is ~/.xlink/settings.yaml or ~/.xlink/xlink.db.
func DefaultPath(backend config.StoreBackend) string {
	name := "settings.yaml"
	if backend == config.StoreBackendSQLite {
		name = "xlink.db"
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "xlink", name)
	}
	return filepath.Join(dir, ".xlink", name)
}

type listeners struct {
	mu  sync.Mutex
	fns []func([]string)
}

func (l *listeners) OnChange(fn func(changed []string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = append(l.fns, fn)
}

func (l *listeners) notify(changed []string) {
	if len(changed) == 0 {
		return
	}
	l.mu.Lock()
	fns := make([]func([]string), len(l.fns))
	copy(fns, l.fns)
	l.mu.Unlock()

	for _, fn := range fns {
		fn(changed)
	}
}
