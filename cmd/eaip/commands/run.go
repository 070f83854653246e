package commands

import (
	"log/slog"
	"os"

	"eaipviewer/internal/components/telemetry"
	"eaipviewer/internal/eaip"
	"eaipviewer/internal/history"
	"eaipviewer/internal/pipeline"
	"eaipviewer/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Logs in, fetches the current catalog, prints the filtered tree and writes the document list.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		tel := telemetry.SlogAPI{}

		cfg, err := loadConfig(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		client, err := newClient(&cfg, tel)
		if err != nil {
			serviceutil.Fatal("failed to create client", err)
		}

		opts := pipeline.Options{
			BaseUrl:      cfg.BaseUrl,
			LocatorsPath: cfg.Output.Locators,
			Output:       os.Stdout,
			Telemetry:    tel,
		}
		if !cfg.History.Disabled {
			store, err := history.Open(cfg.History.File)
			if err != nil {
				slog.Warn("run history unavailable", "file", cfg.History.File, "err", err)
			} else {
				defer store.Close()
				opts.History = store
			}
		}

		report, err := pipeline.Run(ctx, client, opts)
		if eaip.IsPortalError(err) {
			slog.Error("catalog retrieval failed", "err", err)
			return
		}
		if err != nil {
			serviceutil.Fatal("unexpected failure", err)
		}

		slog.Info(
			"catalog retrieved",
			"release", report.Package.DataName,
			"locators", len(report.Result.Locators),
			"file", cfg.Output.Locators,
		)
	},
}
