package cmd

import (
	"fmt"
	"log"
	"os"

	"schoolsync-backend/services/sync"

	"github.com/go-resty/resty/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reviewCmd)
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Shows the unresolved and needs-review items of the daemon's last run.",
	Run: func(cmd *cobra.Command, args []string) {
		if config.SyncdAddress == "" {
			fmt.Fprintln(os.Stderr, "syncd_address is not configured")
			os.Exit(1)
		}

		var report sync.RunReport
		res, err := resty.New().R().
			SetContext(cmd.Context()).
			SetResult(&report).
			Get(config.SyncdAddress + "/status")
		if err != nil {
			log.Fatal(err)
		}
		if res.StatusCode() == 404 {
			fmt.Println("no run has completed yet")
			return
		}
		if res.StatusCode() != 200 {
			log.Fatalf("status endpoint returned %d", res.StatusCode())
		}

		fmt.Printf("run %s finished at %s\n", report.RunID, report.FinishedAt.Format("2006-01-02 15:04"))
		renderReview(report)
	},
}

func renderReview(report sync.RunReport) {
	if len(report.UnmappedClasses) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Unmapped Class"})
		for _, id := range report.UnmappedClasses {
			t.AppendRow(table.Row{id})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	}

	if len(report.Unresolved) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Class", "Day", "Time Slot", "Raw Text"})
		for _, item := range report.Unresolved {
			t.AppendRow(table.Row{item.ExternalClassID, item.Day, item.TimeSlot, item.RawText})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	}

	if len(report.NeedsReview) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"External Id", "External Name", "Local Id", "Local Name", "Score"})
		for _, c := range report.NeedsReview {
			t.AppendRow(table.Row{c.ExternalID, c.ExternalName, c.LocalID, c.LocalName, fmt.Sprintf("%.2f", c.Score)})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	}
}
