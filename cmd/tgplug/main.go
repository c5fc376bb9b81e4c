// Package main is the entry point for the tgplug CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flemzord/tgplug/internal/config"
	"github.com/flemzord/tgplug/internal/core"
	"github.com/flemzord/tgplug/pkg/app"

	// Compiled-in modules.
	_ "github.com/flemzord/tgplug/internal/gateway"
	_ "github.com/flemzord/tgplug/modules/bot/telegram"
	_ "github.com/flemzord/tgplug/modules/plugin/announce"
	_ "github.com/flemzord/tgplug/modules/plugin/guard"
	_ "github.com/flemzord/tgplug/modules/plugin/notes"
	_ "github.com/flemzord/tgplug/modules/plugin/start"
	_ "github.com/flemzord/tgplug/modules/plugin/tap"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tgplug",
		Short:         "A Telegram bot built from priority-ordered plugins",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd(), initCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tgplug %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func runParams(cfgPath, dataDir string) app.RunParams {
	return app.RunParams{
		ConfigPath: cfgPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
		DataDir:    dataDir,
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the bot with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			return app.Run(cmd.Context(), runParams(cfgPath, dataDir))
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	cmd.Flags().String("data-dir", "", "Override the persistent data directory")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkConfig(cmd, args[0])
		},
	})
	return cmd
}

// checkConfig loads path and provisions every module without starting
// anything, so module-level validation runs too.
func checkConfig(cmd *cobra.Command, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, err := app.NewLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	appCtx := core.NewAppContext(logger, os.TempDir())
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	a := core.NewApp(appCtx)
	ids := cfg.ModuleIDs()
	if err := a.LoadModules(ids); err != nil {
		return err
	}
	defer a.Stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "  %s\n", id)
	}
	return nil
}
