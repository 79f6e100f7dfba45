package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Paris")
	if err != nil {
		panic(err)
	}
}

// force the timezone to be the campus timezone because the servers may run
// anywhere, which will cause disturbances when manipulating dates based on
// <time.Time>.Year()/Month()/Day()/Hour()/...
func Now() time.Time {
	return time.Now().In(Location)
}

// AcademicYear returns the bounds of the academic year containing `now`, or
// if on summer break, the one that just ended. The year runs from September
// 1st to August 31st.
func AcademicYear(now time.Time) (time.Time, time.Time) {
	now = now.In(Location)
	year := now.Year()
	if now.Month() < time.September {
		year--
	}
	start := time.Date(year, time.September, 1, 0, 0, 0, 0, Location)
	end := time.Date(year+1, time.August, 31, 0, 0, 0, 0, Location)
	return start, end
}

// RollingWindow returns the bounds of the short refresh window: from the
// start of the current week through the end of the next month.
func RollingWindow(now time.Time) (time.Time, time.Time) {
	now = now.In(Location)

	weekday := int(now.Weekday())
	// treat Monday as the first day of the week
	offset := (weekday + 6) % 7
	start := time.Date(now.Year(), now.Month(), now.Day()-offset, 0, 0, 0, 0, Location)

	end := time.Date(now.Year(), now.Month()+2, 1, 0, 0, 0, 0, Location).AddDate(0, 0, -1)
	return start, end
}
