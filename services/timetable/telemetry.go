package timetable

import (
	"iutcal-backend/lib/telemetry"
)

var tracer = telemetry.Tracer("iutcal.services.timetable")
