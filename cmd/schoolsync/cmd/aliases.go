package cmd

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"schoolsync-backend/services/resolver"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	aliasesCmd.AddCommand(listAliasesCmd)
	aliasesCmd.AddCommand(addAliasCmd)
	aliasesCmd.AddCommand(delAliasCmd)
	rootCmd.AddCommand(aliasesCmd)
}

var aliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "Manages operator-curated aliases for raw cell texts.",
}

var listAliasesCmd = &cobra.Command{
	Use:   "list",
	Short: "Prints the stored aliases.",
	Run: func(cmd *cobra.Command, args []string) {
		aliases, err := service.Resolver().Aliases(cmd.Context())
		if err != nil {
			log.Fatal(err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Canonical Key", "Kind", "Entity Id", "Created"})
		for _, a := range aliases {
			t.AppendRow(table.Row{
				a.CanonicalKey,
				a.EntityKind,
				a.EntityID,
				time.Unix(a.CreatedAt, 0).Format("2006-01-02"),
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

func parseKind(arg string) (resolver.EntityKind, error) {
	switch arg {
	case "discipline":
		return resolver.KindDiscipline, nil
	case "staff":
		return resolver.KindStaff, nil
	}
	return "", fmt.Errorf("unknown entity kind %q, expected discipline or staff", arg)
}

var addAliasCmd = &cobra.Command{
	Use:   "add <raw text> <discipline|staff> <entity id>",
	Short: "Records an alias mapping a raw cell text onto a local entity.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 3 {
			fmt.Fprintln(os.Stderr, "incorrect number of arguments")
			os.Exit(1)
		}
		kind, err := parseKind(args[1])
		if err != nil {
			log.Fatal(err)
		}
		entityID, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			log.Fatal(err)
		}

		err = service.ConfirmAlias(cmd.Context(), args[0], kind, entityID)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("alias saved")
	},
}

var delAliasCmd = &cobra.Command{
	Use:   "del <raw text> <discipline|staff>",
	Short: "Deletes an alias.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "incorrect number of arguments")
			os.Exit(1)
		}
		kind, err := parseKind(args[1])
		if err != nil {
			log.Fatal(err)
		}

		err = service.Resolver().RemoveAlias(cmd.Context(), args[0], kind)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("alias deleted")
	},
}
