package main

import (
	"context"

	"iutcal-backend/lib/serviceutil"
	"iutcal-backend/lib/telemetry"
)

func InitTelemetry(ctx context.Context, verbose bool) {
	err := telemetry.SetupFromEnv(ctx, "iutcal-server")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	telemetry.InstrumentPerfStats(ctx)
	telemetry.InitSlog(verbose)
}
