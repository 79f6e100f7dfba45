package commands

import (
	"log"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(groupsCmd)
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Prints every group the service has refreshed, with its cache state.",
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := openService()
		if err != nil {
			log.Fatal(err)
		}

		groups, err := svc.KnownGroups(cmd.Context())
		if err != nil {
			log.Fatal(err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Group", "Last refresh", "Events", "Skipped"})
		for _, group := range groups {
			diag, err := svc.GetDiagnostics(cmd.Context(), group, false)
			if err != nil {
				log.Fatal(err)
			}
			t.AppendRow(table.Row{
				group,
				time.UnixMilli(diag.LastRefreshAt).Format(time.RFC3339),
				diag.EventCount,
				diag.SkippedEvents,
			})
		}
		t.Render()
	},
}
