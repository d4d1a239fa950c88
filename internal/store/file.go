package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/sunbk201/xlink/internal/config"
	"go.yaml.in/yaml/v3"
)

// FileStore keeps settings in a YAML file and reloads it when it is edited
// from outside.
type FileStore struct {
	listeners

	path    string
	v       *viper.Viper
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu     sync.RWMutex
	cur    config.Settings
	closed bool
}

func OpenFile(path string, seed config.Settings) (*FileStore, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("filepath.Abs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("os.MkdirAll: %w", err)
	}

	s := &FileStore{
		path: path,
		v:    viper.New(),
		done: make(chan struct{}),
	}
	s.v.SetConfigFile(path)
	s.v.SetConfigType("yaml")

	if err := s.seed(seed); err != nil {
		return nil, err
	}
	if s.cur, err = s.read(); err != nil {
		return nil, err
	}

	s.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	if err := s.watcher.Add(filepath.Dir(path)); err != nil {
		s.watcher.Close()
		return nil, fmt.Errorf("watcher.Add: %w", err)
	}
	go s.watch()

	return s, nil
}

func (s *FileStore) Path() string {
	return s.path
}

// seed writes the defaults on first run and adds an empty rule list to files
// written before custom rules existed.
func (s *FileStore) seed(seed config.Settings) error {
	_, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("Seed settings file", slog.String("path", s.path))
		return s.write(seed.Normalize())
	}
	if err != nil {
		return fmt.Errorf("os.Stat: %w", err)
	}

	if err := s.v.ReadInConfig(); err != nil {
		return fmt.Errorf("viper.ReadInConfig: %w", err)
	}
	if s.v.IsSet(config.KeyCustomRewrites) {
		return nil
	}
	settings, err := s.decode()
	if err != nil {
		return err
	}
	slog.Info("Migrate settings file", slog.String("path", s.path), slog.String("key", config.KeyCustomRewrites))
	return s.write(settings)
}

func (s *FileStore) read() (config.Settings, error) {
	if err := s.v.ReadInConfig(); err != nil {
		return config.Settings{}, fmt.Errorf("viper.ReadInConfig: %w", err)
	}
	return s.decode()
}

func (s *FileStore) decode() (config.Settings, error) {
	var settings config.Settings
	if err := s.v.Unmarshal(&settings, config.DecodeHook()); err != nil {
		return config.Settings{}, fmt.Errorf("viper.Unmarshal: %w", err)
	}
	return settings.Normalize(), nil
}

// write replaces the file atomically.
func (s *FileStore) write(settings config.Settings) error {
	data, err := yaml.Marshal(&settings)
	if err != nil {
		return fmt.Errorf("yaml.Marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("os.CreateTemp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("os.Rename: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context) (config.Settings, error) {
	if err := ctx.Err(); err != nil {
		return config.Settings{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return config.Settings{}, ErrClosed
	}
	return s.cur.Clone(), nil
}

func (s *FileStore) Set(ctx context.Context, p config.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Empty() {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	next := s.cur.Apply(p)
	changed := config.ChangedKeys(s.cur, next)
	if len(changed) == 0 {
		s.mu.Unlock()
		return nil
	}
	if err := s.write(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.cur = next
	s.mu.Unlock()

	slog.Debug("Settings written", slog.String("path", s.path), slog.Any("keys", changed))
	s.notify(changed)
	return nil
}

func (s *FileStore) watch() {
	defer close(s.done)
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				s.reload()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Settings watcher", slog.Any("error", err))
		}
	}
}

func (s *FileStore) reload() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	next, err := s.read()
	if err != nil {
		s.mu.Unlock()
		slog.Warn("Reload settings file", slog.String("path", s.path), slog.Any("error", err))
		return
	}
	changed := config.ChangedKeys(s.cur, next)
	s.cur = next
	s.mu.Unlock()

	if len(changed) > 0 {
		slog.Info("Settings file changed", slog.String("path", s.path), slog.Any("keys", changed))
	}
	s.notify(changed)
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.watcher.Close()
	<-s.done
	return err
}
