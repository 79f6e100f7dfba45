package main

import (
	"database/sql"
	"net/http"
	"time"

	configlibsql "iutcal-backend/lib/configutil/libsql"
	configsqlite "iutcal-backend/lib/configutil/sqlite"
	"iutcal-backend/lib/scrapers/planning"
	"iutcal-backend/services/timetable"
	"iutcal-backend/services/timetable/db"
	"iutcal-backend/services/timetable/server"
)

type PortalConfig struct {
	LoginUrl string `json:"login_url"`
	AppUrl   string `json:"app_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type TimetableConfig struct {
	// Database is a local sqlite file; RemoteDatabase, when its url is
	// set, takes precedence and points at a libsql server.
	Database       configsqlite.Struct `json:"database"`
	RemoteDatabase configlibsql.Struct `json:"remote_database"`

	Portal PortalConfig `json:"portal"`

	AllowedGroups []string `json:"allowed_groups"`
	AccessToken   string   `json:"access_token"`

	PublicWindowHours  int `json:"public_window_hours"`
	TrustedWindowHours int `json:"trusted_window_hours"`
}

func InitTimetable(mux *http.ServeMux, cfg TimetableConfig) error {
	var database *sql.DB
	var err error
	if cfg.RemoteDatabase.Url != "" {
		database, err = cfg.RemoteDatabase.OpenDB(db.Schema)
	} else {
		database, err = cfg.Database.OpenDB(db.Schema)
	}
	if err != nil {
		return err
	}

	automator := planning.NewClient(planning.ClientOptions{
		LoginUrl: cfg.Portal.LoginUrl,
		AppUrl:   cfg.Portal.AppUrl,
	})
	svc := timetable.NewService(database, automator, timetable.ServiceOptions{
		Credentials: planning.Credentials{
			Username: cfg.Portal.Username,
			Password: cfg.Portal.Password,
		},
		PublicWindow:  time.Duration(cfg.PublicWindowHours) * time.Hour,
		TrustedWindow: time.Duration(cfg.TrustedWindowHours) * time.Hour,
	})

	server.NewServer(svc, server.Options{
		AllowedGroups: cfg.AllowedGroups,
		AccessToken:   cfg.AccessToken,
	}).Register(mux)

	return nil
}
