package cmd

import (
	"fmt"
	"log"

	"schoolsync-backend/services/sync"

	"github.com/spf13/cobra"
)

var (
	importClass   string
	importSubject string
	importTerm    int
)

func init() {
	importCmd.Flags().StringVar(&importClass, "class", "", "external class section id, walks every class when unset")
	importCmd.Flags().StringVar(&importSubject, "subject", "", "external subject id")
	importCmd.Flags().IntVar(&importTerm, "term", 0, "1-based term (bimestre)")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Extracts schedule grids and writes reconciled cells into the store.",
	Run: func(cmd *cobra.Command, args []string) {
		nav, cleanup, err := openNavigator(cmd.Context())
		if err != nil {
			log.Fatal(err)
		}
		defer cleanup()

		report, err := service.RunImport(cmd.Context(), nav, flagSelections(importClass, importSubject, importTerm), func(p sync.Progress) {
			fmt.Printf("[%s] %s\n", p.Stage, p.Message)
		})
		if err != nil {
			log.Fatal(err)
		}

		renderPages(report)
		renderReview(report)
		fmt.Printf(
			"run %s: %d rows extracted, %d persisted, %d unresolved\n",
			report.RunID, report.RowsExtracted, report.RowsPersisted, len(report.Unresolved),
		)
	},
}
