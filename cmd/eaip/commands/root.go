package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	libtelemetry "eaipviewer/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool
	dumpHttp   *string
)

var providers libtelemetry.Telemetry

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "", "Path to config.json5, by default the working directory and then the user config directory are searched.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging.")
	dumpHttp = rootCmd.PersistentFlags().String("dump-http", "", "Write every HTTP exchange with the portal to files in this directory.")
}

var rootCmd = &cobra.Command{
	Use:           "eaip",
	Short:         "eaip retrieves the current eAIP catalog and lists the documents that matter.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		libtelemetry.InitSlog(*verbose)
		if *verbose {
			slog.DebugContext(cmd.Context(), "verbose logging enabled")
		}

		var err error
		providers, err = libtelemetry.SetupFromEnv(cmd.Context(), "eaip")
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		return nil
	},
}

func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)

	shutdownErr := providers.Shutdown(context.Background())
	if shutdownErr != nil {
		slog.Warn("failed to flush telemetry", "err", shutdownErr)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
