package cmd

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"schoolsync-backend/scrapers/diario"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var reconcileClass string

func init() {
	reconcileCmd.Flags().StringVar(&reconcileClass, "class", "", "external class section id to download the student list for")
	reconcileCmd.MarkFlagRequired("class")
	studentsCmd.AddCommand(reconcileCmd)
	studentsCmd.AddCommand(confirmCmd)
	studentsCmd.AddCommand(listStudentsCmd)
	rootCmd.AddCommand(studentsCmd)
}

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Manages student identity reconciliation.",
}

var listStudentsCmd = &cobra.Command{
	Use:   "list",
	Short: "Prints the local students and their platform identities.",
	Run: func(cmd *cobra.Command, args []string) {
		students, err := service.Linker().Students(cmd.Context())
		if err != nil {
			log.Fatal(err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Id", "Name", "External Id"})
		for _, s := range students {
			t.AppendRow(table.Row{s.ID, s.Name, s.ExternalID.String})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Downloads a class's student list and matches it against local students.",
	Run: func(cmd *cobra.Command, args []string) {
		nav, cleanup, err := openNavigator(cmd.Context())
		if err != nil {
			log.Fatal(err)
		}
		defer cleanup()

		baseUrl := config.Portal.ExportUrl
		if baseUrl == "" {
			baseUrl = config.Portal.ScheduleUrl
		}
		export, err := diario.NewExportClient(cmd.Context(), nav.Driver(), baseUrl)
		if err != nil {
			log.Fatal(err)
		}
		data, err := export.DownloadStudentList(cmd.Context(), reconcileClass)
		if err != nil {
			log.Fatal(err)
		}
		records, err := diario.ParseStudentCsv(data)
		if err != nil {
			log.Fatal(err)
		}

		needsReview, err := service.ReconcileStudents(cmd.Context(), records)
		if err != nil {
			log.Fatal(err)
		}

		if len(needsReview) == 0 {
			fmt.Println("every candidate was confirmed automatically")
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"External Id", "External Name", "Local Id", "Local Name", "Score", "Status"})
		for _, c := range needsReview {
			t.AppendRow(table.Row{c.ExternalID, c.ExternalName, c.LocalID, c.LocalName, fmt.Sprintf("%.2f", c.Score), c.Status.String()})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		fmt.Println("confirm a candidate with: schoolsync students confirm <local id> <external id>")
	},
}

var confirmCmd = &cobra.Command{
	Use:   "confirm <local id> <external id>",
	Short: "Accepts a reviewed candidate, writing the platform identity onto the local student.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "incorrect number of arguments")
			os.Exit(1)
		}
		localID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			log.Fatal(err)
		}

		err = service.ConfirmCandidate(cmd.Context(), localID, args[1])
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("confirmed")
	},
}
