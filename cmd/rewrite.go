package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sunbk201/xlink/internal/rewrite"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [url...]",
	Short: "Rewrite links given as arguments or read line by line from stdin",
	RunE:  runRewrite,
}

var (
	rewriteExplain bool
	rewriteMode    string
)

func init() {
	rewriteCmd.Flags().BoolVarP(&rewriteExplain, "explain", "e", false, "Show mode, reason and per-rule steps")
	rewriteCmd.Flags().StringVarP(&rewriteMode, "mode", "m", "", "Use this mode instead of the stored one")
	rootCmd.AddCommand(rewriteCmd)
}

func runRewrite(cmd *cobra.Command, args []string) error {
	cfg, err := setupCLI()
	if err != nil {
		return err
	}
	live, err := openLive(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer live.Close()

	snap := live.Snapshot()
	if rewriteMode != "" {
		if _, err := rewrite.ParseMode(rewriteMode); err != nil {
			return err
		}
		settings, err := live.Get(cmd.Context())
		if err != nil {
			return err
		}
		settings.RewriteMode = rewriteMode
		snap = rewrite.NewConfig(settings, cfg.MatchTimeout)
	}

	out := cmd.OutOrStdout()
	emit := func(raw string) {
		o := rewrite.Evaluate(raw, snap)
		if rewriteExplain {
			renderOutcome(out, o)
			return
		}
		fmt.Fprintln(out, o.Output)
	}

	if len(args) > 0 {
		for _, raw := range args {
			emit(raw)
		}
		return nil
	}

	sc := bufio.NewScanner(cmd.InOrStdin())
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		emit(line)
	}
	return sc.Err()
}
