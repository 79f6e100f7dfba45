package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"iutcal-backend/lib/configutil"
	configsqlite "iutcal-backend/lib/configutil/sqlite"
	"iutcal-backend/lib/scrapers/planning"
	"iutcal-backend/services/timetable"
	"iutcal-backend/services/timetable/db"
)

var rootCmd = &cobra.Command{
	Use:   "iutcal-cli",
	Short: "iutcal-cli inspects and refreshes the timetable database of an iutcal deployment.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type PortalConfig struct {
	LoginUrl string `json:"login_url"`
	AppUrl   string `json:"app_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type TimetableConfig struct {
	Database configsqlite.Struct `json:"database"`
	Portal   PortalConfig        `json:"portal"`

	PublicWindowHours  int `json:"public_window_hours"`
	TrustedWindowHours int `json:"trusted_window_hours"`
}

// Config mirrors the server's config.json5 so the CLI can run next to a
// deployment and operate on the same database.
type Config struct {
	Timetable TimetableConfig `json:"timetable"`
}

func openService() (*timetable.Service, error) {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	database, err := cfg.Timetable.Database.OpenDB(db.Schema)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	automator := planning.NewClient(planning.ClientOptions{
		LoginUrl: cfg.Timetable.Portal.LoginUrl,
		AppUrl:   cfg.Timetable.Portal.AppUrl,
	})
	return timetable.NewService(database, automator, timetable.ServiceOptions{
		Credentials: planning.Credentials{
			Username: cfg.Timetable.Portal.Username,
			Password: cfg.Timetable.Portal.Password,
		},
		PublicWindow:  time.Duration(cfg.Timetable.PublicWindowHours) * time.Hour,
		TrustedWindow: time.Duration(cfg.Timetable.TrustedWindowHours) * time.Hour,
	}), nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
