package domain

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall clock time in the process's local zone.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Reached reports whether now's wall clock is at or past t.
func (t TimeOfDay) Reached(now time.Time) bool {
	h, m, s := now.Clock()
	return h*3600+m*60+s >= t.Hour*3600+t.Minute*60+t.Second
}
