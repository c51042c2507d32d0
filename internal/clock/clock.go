package clock

import (
	"fmt"
	"time"
)

// Clock supplies the current instant. The orchestrator takes a Clock rather
// than calling time.Now so tests can pin the wall clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Fixed returns a Clock frozen at t.
func Fixed(t time.Time) Clock { return fixedClock{t} }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// TimeParts is a zero-padded calendar/clock breakdown of one instant in the
// note time zone. Computed once per delivery and shared by path resolution
// and line timestamps.
type TimeParts struct {
	Year4   string
	Year2   string
	Month2  string
	Day2    string
	Hour2   string
	Minute2 string
	Second2 string
	ISODate string
}

// noteZone is the fixed zone all notes are bucketed in. Loaded via the tz
// database so historical offset changes stay correct.
var noteZone = mustLoadZone("Asia/Tokyo")

func mustLoadZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("loading time zone %s: %v", name, err))
	}
	return loc
}

// PartsAt breaks t down in the note time zone.
func PartsAt(t time.Time) TimeParts {
	local := t.In(noteZone)

	parts := TimeParts{
		Year4:   fmt.Sprintf("%04d", local.Year()),
		Month2:  fmt.Sprintf("%02d", int(local.Month())),
		Day2:    fmt.Sprintf("%02d", local.Day()),
		Hour2:   fmt.Sprintf("%02d", local.Hour()),
		Minute2: fmt.Sprintf("%02d", local.Minute()),
		Second2: fmt.Sprintf("%02d", local.Second()),
	}
	parts.Year2 = parts.Year4[2:]
	parts.ISODate = parts.Year4 + "-" + parts.Month2 + "-" + parts.Day2
	return parts
}
