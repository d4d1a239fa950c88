package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sunbk201/xlink/internal/clipboard"
	"github.com/sunbk201/xlink/internal/config"
	"github.com/sunbk201/xlink/internal/log"
	"github.com/sunbk201/xlink/internal/statistics"
	"github.com/sunbk201/xlink/internal/store"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rewrite links as they are copied to the clipboard",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().Duration("interval", 0, "Clipboard polling interval")
	watchCmd.Flags().Bool("strip-query", false, "Drop the query and fragment of source links before rewriting")
	_ = viper.BindPFlag("watch-interval", watchCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("strip-query", watchCmd.Flags().Lookup("strip-query"))
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.SetLogConf(cfg.LogLevel)
	log.LogHeader(AppVersion, cfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	live, err := openLive(ctx, cfg)
	if err != nil {
		slog.Error("openLive", slog.Any("error", err))
		return err
	}
	addShutdown("store.Close", live.Close)
	defer shutdown()

	startWatcher(ctx, cfg, live, startRecorder(ctx, cfg))
	waitSignal(ctx)
	cancel()
	return nil
}

func startRecorder(ctx context.Context, cfg *config.Config) *statistics.Recorder {
	if !cfg.Stats.Enabled {
		return nil
	}
	rc := statistics.New(log.GetLogDir())
	rc.Run(ctx, statistics.DefaultDumpInterval)
	return rc
}

func startWatcher(ctx context.Context, cfg *config.Config, live *store.Live, rc *statistics.Recorder) {
	opts := clipboard.Options{
		Interval:   cfg.WatchInterval,
		StripQuery: cfg.StripQuery,
	}
	if rc != nil {
		opts.Recorder = rc
	}
	w := clipboard.NewWatcher(clipboard.System{}, live, opts)
	go func() {
		if err := w.Run(ctx); err != nil {
			slog.Error("clipboard watcher", slog.Any("error", err))
		}
	}()
}
