package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Weekdays is the canonical schedule day set: lowercase English day names.
// External encodings map names to 0=Sunday..6=Saturday.
type Weekdays []string

var dayNumbers = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

// ErrEmptyDays is returned when a schedule has no weekday selected
var ErrEmptyDays = errors.New("at least one day must be selected")

// ParseWeekdays normalizes raw day names to the canonical set. Unknown names
// are rejected rather than silently dropped.
func ParseWeekdays(names []string) (Weekdays, error) {
	if len(names) == 0 {
		return nil, ErrEmptyDays
	}
	seen := make(map[string]bool, len(names))
	out := make(Weekdays, 0, len(names))
	for _, n := range names {
		day := strings.ToLower(strings.TrimSpace(n))
		if _, ok := dayNumbers[day]; !ok {
			return nil, fmt.Errorf("unknown weekday %q", n)
		}
		if seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, day)
	}
	return out, nil
}

// Contains reports whether the set includes the given weekday
func (w Weekdays) Contains(day time.Weekday) bool {
	for _, name := range w {
		if num, ok := dayNumbers[name]; ok && num == int(day) {
			return true
		}
	}
	return false
}

// Numbers converts the set to the external 0=Sunday..6=Saturday encoding,
// skipping anything unrecognized
func (w Weekdays) Numbers() []int {
	nums := make([]int, 0, len(w))
	for _, name := range w {
		if num, ok := dayNumbers[name]; ok {
			nums = append(nums, num)
		}
	}
	return nums
}

// Valid reports whether the set is non-empty and every name is canonical
func (w Weekdays) Valid() bool {
	if len(w) == 0 {
		return false
	}
	for _, name := range w {
		if _, ok := dayNumbers[name]; !ok {
			return false
		}
	}
	return true
}

// Validate checks schedule fields the way mutations must enforce them:
// time in range, a known action, and a non-empty weekday set.
func (s *Schedule) Validate() error {
	if s.Name == "" {
		return errors.New("schedule name required")
	}
	if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("invalid time %02d:%02d", s.Hour, s.Minute)
	}
	if s.Action != ActionTurnOn && s.Action != ActionTurnOff {
		return fmt.Errorf("action must be %s or %s", ActionTurnOn, ActionTurnOff)
	}
	if !s.Days.Valid() {
		return ErrEmptyDays
	}
	return nil
}
