// Package timeutil resolves learner timezones for streak tracking.
// Activity dates are calendar days in the learner's timezone, so correct
// day boundaries matter more than wall-clock time here.
// No external dependencies - uses only standard library.
package timeutil

import "time"

// LocationFor resolves an IANA timezone name. An empty or unknown name
// resolves to UTC, so a bad client header can never make a request fail,
// only shift which calendar day it lands on.
func LocationFor(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// InZone shifts t into the named timezone. Truncating the result to a
// calendar day yields the activity date streaks are counted in.
func InZone(t time.Time, name string) time.Time {
	return t.In(LocationFor(name))
}
