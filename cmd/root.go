package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sunbk201/xlink/internal/config"
)

var (
	AppVersion    = "Development"
	shutdownChain []func() error
)

var rootCmd = &cobra.Command{
	Use:   "xlink",
	Short: "xlink rewrites Twitter/X links",
	Long: "xlink rewrites Twitter/X post links into embed-friendly mirrors, a privacy front-end, " +
		"a tracking-free canonical form or user-defined rules. It works on the command line, " +
		"on the clipboard and over a local HTTP API.",
	SilenceUsage: true,
	RunE:         runRoot,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().BoolP("version", "v", false, "Show version")
	rootCmd.Flags().BoolP("generate-config", "g", false, "Generate template config file")

	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "Config file path")
	pf.StringP("log-level", "l", "", "Log level: debug, info, warn, error")
	pf.String("store", "", "Settings store backend: file, sqlite")
	pf.String("store-path", "", "Settings store path")
	pf.Duration("match-timeout", 0, "Regex match timeout per custom rule")
	pf.String("rules-json", "", "Custom rewrite rules as JSON, used to seed a new store")

	_ = viper.BindPFlag("config", pf.Lookup("config"))
	_ = viper.BindPFlag("log-level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("store.backend", pf.Lookup("store"))
	_ = viper.BindPFlag("store.path", pf.Lookup("store-path"))
	_ = viper.BindPFlag("match-timeout", pf.Lookup("match-timeout"))
	_ = viper.BindPFlag("custom-rewrites-json", pf.Lookup("rules-json"))

	viper.SetEnvPrefix("XLINK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("custom-rewrites-json", "XLINK_CUSTOM_REWRITES")
}

func initConfig() {
	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.MergeInConfig(); err != nil {
			slog.Error("Failed to read config file", slog.Any("error", err))
			os.Exit(1)
		}
	}
	config.SetDefaults(viper.GetViper())
}

func runRoot(cmd *cobra.Command, args []string) error {
	showVer, _ := cmd.Flags().GetBool("version")
	if showVer {
		fmt.Fprintf(cmd.OutOrStdout(), "xlink version %s\n", AppVersion)
		return nil
	}

	genConfig, _ := cmd.Flags().GetBool("generate-config")
	if genConfig {
		_, err := config.GenerateTemplateConfig(true)
		if err != nil {
			return fmt.Errorf("failed to generate template config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Template config file '%s' generated successfully.\n", config.TemplateFile)
		return nil
	}

	return cmd.Help()
}

func addShutdown(name string, fn func() error) {
	shutdownChain = append(shutdownChain, func() error {
		if err := fn(); err != nil {
			slog.Error(name, slog.Any("error", err))
			return err
		}
		return nil
	})
}

func shutdown() {
	for i := len(shutdownChain) - 1; i >= 0; i-- {
		_ = shutdownChain[i]()
	}
	shutdownChain = nil
	slog.Info("xlink exit")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
