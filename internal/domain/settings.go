package domain

import (
	"fmt"
	"time"
)

// Settings holds operator toggles that can change at runtime.
type Settings struct {
	QuickAdd        bool
	RolloverEnabled bool
	RolloverTime    string // HH:MM in the configured zone
}

// ParseClock parses an HH:MM time of day.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q (want HH:MM): %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
