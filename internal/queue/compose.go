package queue

import (
	"errors"
	"time"
)

var ErrPastDateTime = errors.New("scheduled time is in the past")

// ComposeFireTime builds the fire time from the calendar selection in loc and
// rejects anything not strictly after now.
func ComposeFireTime(year int, month time.Month, day, hour, minute int, loc *time.Location, now time.Time) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	fireAt := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if !fireAt.After(now) {
		return time.Time{}, ErrPastDateTime
	}
	return fireAt, nil
}
