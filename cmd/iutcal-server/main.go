package main

import (
	"flag"
	"net/http"

	"iutcal-backend/lib/configutil"
	"iutcal-backend/lib/serviceutil"
)

type Config struct {
	Port      int             `json:"port"`
	Timetable TimetableConfig `json:"timetable"`
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}

	mux := http.NewServeMux()

	err = InitTimetable(mux, cfg.Timetable)
	if err != nil {
		serviceutil.Fatal("init timetable", err)
	}

	go serviceutil.StartHttpServer(cfg.Port, mux)
	<-ctx.Done()
}
