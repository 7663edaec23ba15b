package services

import (
	"time"

	"spendy/internal/core"
)

// Clock supplies "now" and the zone calendar days are counted in.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// SystemClock uses the wall clock in loc (UTC when nil).
func SystemClock(loc *time.Location) Clock {
	return Clock{Now: time.Now, Location: loc}
}

func (c Clock) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c Clock) Today() core.Date {
	return core.DateOf(c.now(), c.Location)
}

func (c Clock) CurrentMonth() core.Month {
	return c.Today().Month()
}
