// README: Pricing vocabulary shared by ingestion and suggestion (time of day, traffic level).
package pricing

import "fmt"

// TimeOfDay is the coarse trip context a driver reports.
type TimeOfDay string

const (
	TimeOfDayUnknown TimeOfDay = ""
	TimeOfDayDay     TimeOfDay = "day"
	TimeOfDayNight   TimeOfDay = "night"
)

// Representative local hours stored as time_bucket for reported day/night trips.
const (
	DayTimeBucket   = 12
	NightTimeBucket = 22
)

// ParseTimeOfDay accepts "day", "night" or the empty string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	switch TimeOfDay(s) {
	case TimeOfDayUnknown, TimeOfDayDay, TimeOfDayNight:
		return TimeOfDay(s), nil
	default:
		return TimeOfDayUnknown, fmt.Errorf("time_of_day must be %q or %q", TimeOfDayDay, TimeOfDayNight)
	}
}

// TimeBucket maps a reported time of day to its representative hour.
// ok is false for TimeOfDayUnknown.
func (t TimeOfDay) TimeBucket() (hour int, ok bool) {
	switch t {
	case TimeOfDayDay:
		return DayTimeBucket, true
	case TimeOfDayNight:
		return NightTimeBucket, true
	default:
		return 0, false
	}
}

// TrafficLevel is the driver-reported congestion, 1 (light) to 3 (heavy).
type TrafficLevel int

const (
	TrafficLight  TrafficLevel = 1
	TrafficMedium TrafficLevel = 2
	TrafficHeavy  TrafficLevel = 3
)

func (l TrafficLevel) Valid() bool {
	return l >= TrafficLight && l <= TrafficHeavy
}

func (l TrafficLevel) String() string {
	switch l {
	case TrafficLight:
		return "light"
	case TrafficMedium:
		return "medium"
	case TrafficHeavy:
		return "heavy"
	default:
		return fmt.Sprintf("traffic(%d)", int(l))
	}
}
