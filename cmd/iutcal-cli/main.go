package main

import (
	"context"

	"iutcal-backend/cmd/iutcal-cli/commands"
	"iutcal-backend/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "iutcal-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
