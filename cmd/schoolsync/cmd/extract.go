package cmd

import (
	"fmt"
	"log"
	"os"

	"schoolsync-backend/services/sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	extractClass   string
	extractSubject string
	extractTerm    int
)

func init() {
	extractCmd.Flags().StringVar(&extractClass, "class", "", "external class section id, walks every class when unset")
	extractCmd.Flags().StringVar(&extractSubject, "subject", "", "external subject id")
	extractCmd.Flags().IntVar(&extractTerm, "term", 0, "1-based term (bimestre)")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extracts schedule grids from the platform without writing to the store.",
	Run: func(cmd *cobra.Command, args []string) {
		nav, cleanup, err := openNavigator(cmd.Context())
		if err != nil {
			log.Fatal(err)
		}
		defer cleanup()

		report, err := service.RunExtract(cmd.Context(), nav, flagSelections(extractClass, extractSubject, extractTerm), nil)
		if err != nil {
			log.Fatal(err)
		}

		renderPages(report)
		fmt.Printf("run %s: %d rows extracted\n", report.RunID, report.RowsExtracted)
	},
}

func renderPages(report sync.RunReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Class", "Subject", "Term", "Rows", "Drift"})

	for _, p := range report.Pages {
		t.AppendRow(table.Row{p.Class, p.Subject, p.Term + 1, p.Rows, p.Drift})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}
