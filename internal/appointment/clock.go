package appointment

import (
	"fmt"
	"math"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (time.Time, error) {
	if len(s) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("date %q is not YYYY-MM-DD", s)
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseClock parses a zero-padded 24-hour HH:MM time and returns minutes since midnight.
// The fixed width is what makes lexicographic comparison of stored times valid.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// RoundHalfHours converts minutes to hours rounded to the nearest 0.5, with halves rounded up.
// 45 minutes is 1.0, 15 minutes is 0.5, 5 minutes is 0.
func RoundHalfHours(minutes int) float64 {
	return math.Floor(float64(minutes)/30+0.5) / 2
}

// Derive computes duration and cost for a start/end pair. It is the single source of truth
// for the two denormalized fields stored on every Appointment.
func Derive(start, end string, unitRate float64) (duration, cost float64, err error) {
	s, err := ParseClock(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return 0, 0, err
	}
	duration = RoundHalfHours(e - s)
	return duration, duration * unitRate, nil
}

// EndsAt returns the wall-clock instant the appointment ends in loc.
func (a Appointment) EndsAt(loc *time.Location) (time.Time, error) {
	return localInstant(a.Date, a.EndTime, loc)
}

// StartsAt returns the wall-clock instant the appointment starts in loc.
func (a Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	return localInstant(a.Date, a.StartTime, loc)
}

func localInstant(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout+" "+ClockLayout, date+" "+clock, loc)
}
