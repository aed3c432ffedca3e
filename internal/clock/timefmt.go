package clock

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the only timestamp profile the device speaks. Timestamps carry
// local time (UTC plus a fixed offset) and no zone designator.
const Layout = "2006-01-02T15:04:05"

// ErrMalformedTimestamp is returned by Parse for input not in Layout.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// DateTime is a broken-down local timestamp. The zero value is the sentinel
// for unparseable input.
type DateTime struct {
	Year, Month, Day     int
	Hour, Minute, Second int
}

// IsZero reports whether d is the sentinel.
func (d DateTime) IsZero() bool {
	return d == DateTime{}
}

// Time returns d as a time.Time in UTC, treating the local fields as if
// they were UTC. Only differences between such values are meaningful.
func (d DateTime) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, d.Second, 0, time.UTC)
}

// String renders d in Layout.
func (d DateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second)
}

// Format renders t as local time at offsetSeconds east of UTC.
func Format(t time.Time, offsetSeconds int) string {
	return t.UTC().Add(time.Duration(offsetSeconds) * time.Second).Format(Layout)
}

// Parse is the strict inverse of Format's rendering. Anything else,
// including out-of-range fields, yields the zero DateTime and an error.
func Parse(s string) (DateTime, error) {
	// time.Parse accepts a fractional-seconds suffix the layout lacks
	if len(s) != len(Layout) {
		return DateTime{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}
	t, err := time.Parse(Layout, s)
	if err != nil {
		return DateTime{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}
	return DateTime{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}, nil
}

// addMillis advances d by the whole seconds in ms.
func addMillis(d DateTime, ms uint32) string {
	return d.Time().Add(time.Duration(ms/1000) * time.Second).Format(Layout)
}
