package schedule

import (
	"log"
	"time"

	"switchfleet/internal/models"
)

// Expectation is the switch state a schedule set implies at a point in time,
// together with the schedule whose occurrence implies it.
type Expectation struct {
	State    bool
	Schedule models.Schedule
}

// Occurrence is one concrete future firing instant of a schedule
type Occurrence struct {
	Schedule models.Schedule
	FireAt   time.Time
}

// ETA returns whole minutes until the occurrence fires, floored at zero
func (o Occurrence) ETA(now time.Time) int {
	m := int(o.FireAt.Sub(now) / time.Minute)
	if m < 0 {
		return 0
	}
	return m
}

// usable filters out disabled or malformed schedules. Malformed entries are
// skipped with a warning and never abort evaluation of their siblings.
func usable(s models.Schedule) bool {
	if !s.Enabled {
		return false
	}
	if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 || !s.Days.Valid() {
		log.Printf("SCHEDULE: skipping malformed schedule %d (%s): time %02d:%02d days %v",
			s.ID, s.Name, s.Hour, s.Minute, s.Days)
		return false
	}
	return true
}

// bestForDay picks the latest-time schedule active on day with trigger
// minute-of-day <= limit. On an exact time tie the last one in iteration
// order wins.
func bestForDay(schedules []models.Schedule, day time.Weekday, limit int) (models.Schedule, bool) {
	var best models.Schedule
	found := false
	for _, s := range schedules {
		if !usable(s) || !s.Days.Contains(day) {
			continue
		}
		minuteOfDay := s.Hour*60 + s.Minute
		if minuteOfDay > limit {
			continue
		}
		if !found || minuteOfDay >= best.Hour*60+best.Minute {
			best = s
			found = true
		}
	}
	return best, found
}

// ExpectedState computes the switch state the schedule set implies at now.
// A grace period is subtracted first so a check racing the exact trigger
// instant does not see an occurrence the device has not had time to execute.
// The most recently triggered occurrence wins: latest trigger time today,
// falling back to the most recent prior day. Weekly recurrence means one day
// back is sufficient. Returns ok=false when the set has no opinion, in which
// case no correction must ever be attempted.
func ExpectedState(schedules []models.Schedule, now time.Time, grace time.Duration) (Expectation, bool) {
	ref := now.Add(-grace)

	today := ref.Weekday()
	if s, ok := bestForDay(schedules, today, ref.Hour()*60+ref.Minute()); ok {
		return Expectation{State: s.Action == models.ActionTurnOn, Schedule: s}, true
	}

	yesterday := ref.AddDate(0, 0, -1).Weekday()
	if s, ok := bestForDay(schedules, yesterday, 24*60); ok {
		return Expectation{State: s.Action == models.ActionTurnOn, Schedule: s}, true
	}

	return Expectation{}, false
}

// NextOccurrence finds the nearest future firing instant across all
// (schedule, weekday) pairs: minimum non-negative time-until-trigger, so a
// same-day future trigger beats any next-week wraparound. Returns ok=false
// when no enabled schedule yields a future occurrence.
func NextOccurrence(schedules []models.Schedule, now time.Time) (Occurrence, bool) {
	var next Occurrence
	found := false

	for _, s := range schedules {
		if !usable(s) {
			continue
		}
		for offset := 0; offset <= 7; offset++ {
			day := now.AddDate(0, 0, offset)
			if !s.Days.Contains(day.Weekday()) {
				continue
			}
			fireAt := time.Date(day.Year(), day.Month(), day.Day(), s.Hour, s.Minute, 0, 0, now.Location())
			if !fireAt.After(now) {
				continue
			}
			if !found || fireAt.Before(next.FireAt) {
				next = Occurrence{Schedule: s, FireAt: fireAt}
				found = true
			}
			break
		}
	}
	return next, found
}
