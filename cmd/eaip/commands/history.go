package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"eaipviewer/internal/components/chrono"
	"eaipviewer/internal/history"
	"eaipviewer/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit *int

func init() {
	historyLimit = historyCmd.Flags().IntP("limit", "n", 20, "How many runs to list, 0 lists all of them.")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func openHistory() *history.Store {
	cfg, err := loadConfig(*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	store, err := history.Open(cfg.History.File)
	if err != nil {
		serviceutil.Fatal("failed to open run history", err)
	}
	return store
}

var historyCmd = &cobra.Command{
	Use:   "history [--limit <n>]",
	Short: "Lists previous runs.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store := openHistory()
		defer store.Close()

		runs, err := store.Runs(cmd.Context(), *historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to list runs", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return
		}

		clock, err := chrono.NewStandardImpl()
		if err != nil {
			serviceutil.Fatal("failed to load portal time zone", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Started", "Took", "Release", "Nodes", "Locators"})
		for _, run := range runs {
			t.AppendRow(table.Row{
				run.ID,
				run.StartedAt.In(clock.Location()).Format("2006-01-02 15:04 MST"),
				run.FinishedAt.Sub(run.StartedAt).String(),
				run.Release,
				run.KeptNodes,
				run.LocatorCount,
			})
		}
		t.Render()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Lists the documents a run located.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			serviceutil.Fatal("run id must be a number", err)
		}

		store := openHistory()
		defer store.Close()

		locators, err := store.Locators(cmd.Context(), id)
		if errors.Is(err, history.ErrRunNotFound) {
			fmt.Printf("There is no run with id %d.\n", id)
			return
		}
		if err != nil {
			serviceutil.Fatal("failed to list locators", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"#", "Name", "URL"})
		for i, l := range locators {
			t.AppendRow(table.Row{i + 1, l.Name, l.URL})
		}
		t.Render()
	},
}
