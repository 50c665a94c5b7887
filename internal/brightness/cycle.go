package brightness

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Levels are device brightness percentages.
const (
	minLevel = 0
	maxLevel = 100
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

// String formats the time of day as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// timeOfDay extracts the wall-clock minutes-since-midnight from now.
func timeOfDay(now time.Time) TimeOfDay {
	return TimeOfDay(now.Hour()*60 + now.Minute())
}

// Cycle is one daily day/night brightness regime.
//
// The cycle is in its day state while the wall-clock time lies within
// [DayStart, DayEnd); otherwise it is in its night state. The window may
// cross midnight (DayStart after DayEnd). A window with DayStart equal to
// DayEnd is empty: the cycle is permanently in its night state, which is
// how the feature is disabled for that cycle.
type Cycle struct {
	DayLevel   int
	NightLevel int
	DayStart   TimeOfDay
	DayEnd     TimeOfDay
}

// ParseCycle parses the textual cycle form "LL/HHMM-HHMM/LL":
// night level, day window, day level.
//
// For example "20/0800-2000/100" means level 100 between 08:00 and 20:00
// and level 20 otherwise. "0/0000-0000/0" disables the cycle (empty window).
func ParseCycle(s string) (Cycle, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Cycle{}, fmt.Errorf("expected \"LL/HHMM-HHMM/LL\", got %q", s)
	}

	night, err := parseLevel(parts[0])
	if err != nil {
		return Cycle{}, fmt.Errorf("night level: %w", err)
	}

	day, err := parseLevel(parts[2])
	if err != nil {
		return Cycle{}, fmt.Errorf("day level: %w", err)
	}

	startStr, endStr, ok := strings.Cut(parts[1], "-")
	if !ok {
		return Cycle{}, fmt.Errorf("expected day window \"HHMM-HHMM\", got %q", parts[1])
	}
	start, err := parseClock(startStr)
	if err != nil {
		return Cycle{}, fmt.Errorf("window start: %w", err)
	}
	end, err := parseClock(endStr)
	if err != nil {
		return Cycle{}, fmt.Errorf("window end: %w", err)
	}

	return Cycle{
		DayLevel:   day,
		NightLevel: night,
		DayStart:   start,
		DayEnd:     end,
	}, nil
}

// parseLevel parses a brightness percentage 0-100.
func parseLevel(s string) (int, error) {
	level, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if level < minLevel || level > maxLevel {
		return 0, fmt.Errorf("level %d out of range %d-%d", level, minLevel, maxLevel)
	}
	return level, nil
}

// parseClock parses an "HHMM" clock time into minutes since midnight.
func parseClock(s string) (TimeOfDay, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("expected HHMM, got %q", s)
	}
	hh, err := strconv.Atoi(s[:2])
	if err != nil || hh > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	mm, err := strconv.Atoi(s[2:])
	if err != nil || mm > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay(hh*60 + mm), nil
}

// Disabled reports whether the cycle's day window is empty.
func (c Cycle) Disabled() bool {
	return c.DayStart == c.DayEnd
}

// Desired returns the level the cycle wants active at now.
func (c Cycle) Desired(now time.Time) int {
	if c.Disabled() {
		return c.NightLevel
	}

	t := timeOfDay(now)
	var day bool
	if c.DayStart < c.DayEnd {
		day = t >= c.DayStart && t < c.DayEnd
	} else {
		// Window crosses midnight, e.g. 2200-0600.
		day = t >= c.DayStart || t < c.DayEnd
	}

	if day {
		return c.DayLevel
	}
	return c.NightLevel
}
