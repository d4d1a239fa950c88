package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"
	"github.com/sunbk201/xlink/internal/config"
	"github.com/sunbk201/xlink/internal/log"
	"github.com/sunbk201/xlink/internal/store"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.BuildConfigFromViper()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

// setupCLI is used by one-shot commands: logs go to stderr only, stdout is
// reserved for results.
func setupCLI() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log.NewLogger(os.Stderr, cfg.LogLevel))
	return cfg, nil
}

func openLive(ctx context.Context, cfg *config.Config) (*store.Live, error) {
	st, err := store.Open(cfg.Store, cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("store.Open: %w", err)
	}
	live, err := store.NewLive(ctx, st, cfg.MatchTimeout)
	if err != nil {
		st.Close()
		return nil, err
	}
	return live, nil
}

// waitSignal blocks until the process is asked to stop. SIGHUP only logs,
// settings reload on their own.
func waitSignal(ctx context.Context) {
	cleanup := make(chan os.Signal, 1)
	signal.Notify(cleanup, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(cleanup)

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-cleanup:
			slog.Info("Received signal", slog.String("signal", s.String()))
			if s == syscall.SIGHUP {
				slog.Info("Settings are watched, nothing to reload", slog.String("config", viper.ConfigFileUsed()))
				continue
			}
			return
		}
	}
}
