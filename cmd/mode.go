package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sunbk201/xlink/internal/config"
	"github.com/sunbk201/xlink/internal/rewrite"
	"github.com/sunbk201/xlink/internal/store"
)

var modeCmd = &cobra.Command{
	Use:   "mode [name]",
	Short: "Show or set the rewrite mode",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMode,
}

var modeHost string

func init() {
	modeCmd.Flags().StringVar(&modeHost, "host", "", "Privacy mirror host used by the nitter mode")
	rootCmd.AddCommand(modeCmd)
}

func runMode(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(cfg *config.Config, live *store.Live) error {
		ctx := cmd.Context()
		if len(args) == 1 {
			if _, err := store.SetMode(ctx, live, args[0]); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("host") {
			if _, err := store.SetPrivacyMirrorHost(ctx, live, modeHost); err != nil {
				return err
			}
		}

		snap := live.Snapshot()
		out := cmd.OutOrStdout()
		for _, m := range rewrite.Modes() {
			marker := "  "
			if m == snap.Mode {
				marker = styleSuccess.Render("*") + " "
			}
			desc := m.Description()
			if m == rewrite.ModePrivacyMirror {
				desc += " " + snap.PrivacyMirrorHost
			}
			fmt.Fprintf(out, "%s%-10s %s\n", marker, m.String(), styleDim.Render(desc))
		}
		return nil
	})
}
