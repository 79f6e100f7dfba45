package commands

import (
	"log"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"iutcal-backend/lib/timezone"
)

func init() {
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show <group>",
	Short: "Prints the stored events of a group in local time.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := openService()
		if err != nil {
			log.Fatal(err)
		}

		events, err := svc.ListEvents(cmd.Context(), args[0])
		if err != nil {
			log.Fatal(err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Start", "End", "Summary"})
		for _, ev := range events {
			t.AppendRow(table.Row{
				ev.Start.In(timezone.Location).Format("Mon 02/01 15:04"),
				ev.End.In(timezone.Location).Format("15:04"),
				ev.Summary,
			})
		}
		t.Render()

		log.Printf("%d events (rendered at %s)", len(events), timezone.Now().Format(time.RFC3339))
	},
}
