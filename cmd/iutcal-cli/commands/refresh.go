package commands

import (
	"log"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(refreshCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <group>...",
	Short: "Forces a browser automation refresh of a group, ignoring the validity window.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := openService()
		if err != nil {
			log.Fatal(err)
		}

		for _, group := range args {
			t1 := time.Now()
			err = svc.Refresh(cmd.Context(), group)
			if err != nil {
				log.Fatal(err)
			}
			t2 := time.Now()

			diag, err := svc.GetDiagnostics(cmd.Context(), group, false)
			if err != nil {
				log.Fatal(err)
			}
			slog.Info(
				"refreshed group",
				"group", group,
				"events", diag.EventCount,
				"skipped", diag.SkippedEvents,
				"seconds", t2.Sub(t1).Seconds(),
			)
		}
	},
}
