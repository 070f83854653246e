package commands

import (
	"log/slog"
	"os"

	"eaipviewer/internal/components/telemetry"
	"eaipviewer/internal/eaip"
	"eaipviewer/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Logs in and shows the account's identity and administrator status.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := loadConfig(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		client, err := newClient(&cfg, telemetry.SlogAPI{})
		if err != nil {
			serviceutil.Fatal("failed to create client", err)
		}

		err = client.Login(ctx)
		if eaip.IsPortalError(err) {
			slog.Error("login failed", "err", err)
			return
		}
		if err != nil {
			serviceutil.Fatal("unexpected failure", err)
		}

		check, err := client.ValidateAdmin(ctx)
		if eaip.IsPortalError(err) {
			slog.Error("administrator check failed", "err", err)
			return
		}
		if err != nil {
			serviceutil.Fatal("unexpected failure", err)
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(os.Stdout)
		t.AppendRows([]table.Row{
			{"Username", cfg.Account.Username},
			{"User id", client.Session.UserId()},
			{"Admin check", check.Code},
			{"Message", check.Message},
			{"Data", string(check.Data)},
		})
		t.Render()
	},
}
