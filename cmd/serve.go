package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sunbk201/xlink/internal/api"
	"github.com/sunbk201/xlink/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local HTTP API",
	RunE:  runServe,
}

var serveWatch bool

func init() {
	serveCmd.Flags().String("listen", "", "API listen address")
	serveCmd.Flags().String("secret", "", "API bearer secret")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Also watch the clipboard")
	_ = viper.BindPFlag("api.listen", serveCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("api.secret", serveCmd.Flags().Lookup("secret"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lb := log.NewBroadcaster()
	log.SetLogConf(cfg.LogLevel, lb)
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

	rc := startRecorder(ctx, cfg)

	srv := api.New(AppVersion, cfg, live, rc, lb)
	if err := srv.Start(); err != nil {
		slog.Error("api.Start", slog.Any("error", err))
		return err
	}
	addShutdown("api.Close", srv.Close)

	if serveWatch {
		startWatcher(ctx, cfg, live, rc)
	}

	waitSignal(ctx)
	cancel()
	return nil
}
