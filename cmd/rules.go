package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sunbk201/xlink/internal/config"
	"github.com/sunbk201/xlink/internal/rule"
	"github.com/sunbk201/xlink/internal/store"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage custom rewrite rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List custom rules with their status",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

var rulesAddCmd = &cobra.Command{
	Use:   "add <name> <pattern> <replacement>",
	Short: "Add an enabled rule; a pattern like /re/flags is a regex, anything else is literal with {domain}",
	Args:  cobra.ExactArgs(3),
	RunE:  runRulesAdd,
}

var rulesToggleCmd = &cobra.Command{
	Use:   "toggle <id|position>",
	Short: "Enable or disable a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesToggle,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <id|position>",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesDelete,
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Compile every rule and report the ones the engine would skip",
	Args:  cobra.NoArgs,
	RunE:  runRulesCheck,
}

func init() {
	rulesCmd.AddCommand(rulesListCmd, rulesAddCmd, rulesToggleCmd, rulesDeleteCmd, rulesCheckCmd)
	rootCmd.AddCommand(rulesCmd)
}

func withStore(cmd *cobra.Command, fn func(cfg *config.Config, live *store.Live) error) error {
	cfg, err := setupCLI()
	if err != nil {
		return err
	}
	live, err := openLive(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer live.Close()
	return fn(cfg, live)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(cfg *config.Config, live *store.Live) error {
		settings, err := live.Get(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(settings.CustomRewrites) == 0 {
			fmt.Fprintln(out, styleDim.Render("no custom rules"))
			return nil
		}
		for i, r := range settings.CustomRewrites {
			fmt.Fprintf(out, "%2d %s %s  %s -> %s  %s\n",
				i+1, renderOnOff(r.Enabled), styleTitle.Render(r.Name), r.Pattern, r.Replacement, styleDim.Render(r.ID))
		}
		return nil
	})
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(cfg *config.Config, live *store.Live) error {
		r, err := store.AddRule(cmd.Context(), live, config.Rule{Name: args[0], Pattern: args[1], Replacement: args[2]})
		if err != nil {
			return err
		}
		if _, err := rule.Check(0, r, cfg.MatchTimeout); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), styleWarn.Render("warning: "+err.Error()))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", styleSuccess.Render("added"), r.Name, styleDim.Render(r.ID))
		return nil
	})
}

func runRulesToggle(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(cfg *config.Config, live *store.Live) error {
		r, err := store.ToggleRule(cmd.Context(), live, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", renderOnOff(r.Enabled), r.Name)
		return nil
	})
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(cfg *config.Config, live *store.Live) error {
		r, err := store.DeleteRule(cmd.Context(), live, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", styleError.Render("deleted"), r.Name)
		return nil
	})
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(cfg *config.Config, live *store.Live) error {
		settings, err := live.Get(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		bad := 0
		for i, r := range settings.CustomRewrites {
			dialect, err := rule.Check(i, r, cfg.MatchTimeout)
			if err != nil {
				bad++
				fmt.Fprintf(out, "%2d %s %s\n", i+1, styleError.Render("fail"), err)
				continue
			}
			fmt.Fprintf(out, "%2d %s %s %s\n", i+1, styleSuccess.Render("ok  "), r.Name, styleDim.Render(string(dialect)))
		}
		if bad > 0 {
			return fmt.Errorf("%d of %d rules would be skipped", bad, len(settings.CustomRewrites))
		}
		return nil
	})
}
