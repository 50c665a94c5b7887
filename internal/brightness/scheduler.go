package brightness

import (
	"context"
	"sync"
	"time"
)

// Pusher sends a brightness configuration to the device.
type Pusher interface {
	// PushBrightness sets the LED bar and display brightness levels.
	// It returns nil only once the device has accepted the configuration.
	PushBrightness(ctx context.Context, led, display int) error
}

// Schedule pairs the two independent daily cycles the device exposes.
type Schedule struct {
	LED     Cycle
	Display Cycle
}

// ParseSchedule parses the two textual cycle forms into a Schedule.
func ParseSchedule(led, display string) (Schedule, error) {
	ledCycle, err := ParseCycle(led)
	if err != nil {
		return Schedule{}, err
	}
	displayCycle, err := ParseCycle(display)
	if err != nil {
		return Schedule{}, err
	}
	return Schedule{LED: ledCycle, Display: displayCycle}, nil
}

// Scheduler drives the device's brightness to match the daily schedule.
//
// On each Tick it computes the level each cycle wants active and pushes a
// configuration update only when something differs from the last value the
// device accepted. Repeated ticks with an unchanged desired level are
// no-ops, so the device sees the minimum number of writes. A failed push
// leaves the recorded state untouched and the next tick retries the same
// desired values.
//
// The last-pushed state is unknown at startup, so the first tick always
// pushes once.
//
// Thread Safety: Tick is intended for a single caller (the brightness
// loop); Levels may be read concurrently for status reporting.
type Scheduler struct {
	schedule Schedule
	pusher   Pusher

	mu          sync.Mutex
	lastLED     *int
	lastDisplay *int
}

// NewScheduler creates a Scheduler with unknown last-pushed state.
func NewScheduler(schedule Schedule, pusher Pusher) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		pusher:   pusher,
	}
}

// Tick evaluates the schedule at now and pushes to the device on change.
//
// Returns:
//   - bool: true if a push was issued (successfully or not)
//   - error: the push failure, nil when no push was needed or it succeeded
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (bool, error) {
	led := s.schedule.LED.Desired(now)
	display := s.schedule.Display.Desired(now)

	s.mu.Lock()
	unchanged := s.lastLED != nil && *s.lastLED == led &&
		s.lastDisplay != nil && *s.lastDisplay == display
	s.mu.Unlock()

	if unchanged {
		return false, nil
	}

	if err := s.pusher.PushBrightness(ctx, led, display); err != nil {
		// State stays unchanged so the next tick retries.
		return true, err
	}

	s.mu.Lock()
	s.lastLED = &led
	s.lastDisplay = &display
	s.mu.Unlock()

	return true, nil
}

// Levels returns the last levels the device accepted.
//
// The booleans are false until the first successful push.
func (s *Scheduler) Levels() (led int, display int, known bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastLED == nil || s.lastDisplay == nil {
		return 0, 0, false
	}
	return *s.lastLED, *s.lastDisplay, true
}
