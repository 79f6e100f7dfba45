package planning

import (
	"iutcal-backend/lib/telemetry"
)

var tracer = telemetry.Tracer("iutcal.lib.scrapers.planning")
