package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchfleet/internal/models"
)

const grace = 60 * time.Second

// Monday 2026-01-05 is the anchor week for these tests
func at(day time.Weekday, hour, minute int) time.Time {
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) // Monday
	offset := (int(day) - int(time.Monday) + 7) % 7
	return base.AddDate(0, 0, offset).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func sched(id int, hour, minute int, action string, days ...string) models.Schedule {
	return models.Schedule{
		ID: id, Name: "s", Hour: hour, Minute: minute,
		Action: action, Days: models.Weekdays(days), Enabled: true,
	}
}

func TestExpectedStateDeterministic(t *testing.T) {
	schedules := []models.Schedule{
		sched(1, 6, 0, models.ActionTurnOn, "wednesday"),
		sched(2, 18, 0, models.ActionTurnOff, "wednesday"),
	}
	now := at(time.Wednesday, 20, 0)

	first, ok1 := ExpectedState(schedules, now, grace)
	second, ok2 := ExpectedState(schedules, now, grace)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, first, second)
}

func TestExpectedStateNoSchedules(t *testing.T) {
	_, ok := ExpectedState(nil, at(time.Monday, 12, 0), grace)
	assert.False(t, ok)

	disabled := sched(1, 7, 0, models.ActionTurnOn, "monday")
	disabled.Enabled = false
	_, ok = ExpectedState([]models.Schedule{disabled}, at(time.Monday, 12, 0), grace)
	assert.False(t, ok)
}

func TestExpectedStateYesterdayFallback(t *testing.T) {
	schedules := []models.Schedule{sched(1, 7, 0, models.ActionTurnOn, "monday")}

	// Tuesday 08:00: Monday was the most recent applicable day
	exp, ok := ExpectedState(schedules, at(time.Tuesday, 8, 0), grace)
	require.True(t, ok)
	assert.True(t, exp.State)
	assert.Equal(t, 1, exp.Schedule.ID)

	// Monday 06:59: trigger not yet reached, no opinion
	_, ok = ExpectedState(schedules, at(time.Monday, 6, 59), grace)
	assert.False(t, ok)

	// Two days later the single-day lookback no longer applies
	_, ok = ExpectedState(schedules, at(time.Wednesday, 8, 0), grace)
	assert.False(t, ok)
}

func TestExpectedStateLatestTodayWins(t *testing.T) {
	schedules := []models.Schedule{
		sched(1, 6, 0, models.ActionTurnOn, "wednesday"),
		sched(2, 18, 0, models.ActionTurnOff, "wednesday"),
	}
	exp, ok := ExpectedState(schedules, at(time.Wednesday, 20, 0), grace)
	require.True(t, ok)
	assert.False(t, exp.State)
	assert.Equal(t, 2, exp.Schedule.ID)

	// Between the two triggers the morning schedule still holds
	exp, ok = ExpectedState(schedules, at(time.Wednesday, 12, 0), grace)
	require.True(t, ok)
	assert.True(t, exp.State)
	assert.Equal(t, 1, exp.Schedule.ID)
}

func TestExpectedStateSameTimeTieLastWins(t *testing.T) {
	schedules := []models.Schedule{
		sched(1, 9, 30, models.ActionTurnOn, "friday"),
		sched(2, 9, 30, models.ActionTurnOff, "friday"),
	}
	exp, ok := ExpectedState(schedules, at(time.Friday, 10, 0), grace)
	require.True(t, ok)
	assert.Equal(t, 2, exp.Schedule.ID)
	assert.False(t, exp.State)
}

func TestExpectedStateGracePeriod(t *testing.T) {
	schedules := []models.Schedule{sched(1, 22, 0, models.ActionTurnOff, "monday")}

	// 30s past the trigger is inside the grace window: no opinion yet
	_, ok := ExpectedState(schedules, at(time.Monday, 22, 0).Add(30*time.Second), grace)
	assert.False(t, ok)

	// Past the grace window the trigger counts
	exp, ok := ExpectedState(schedules, at(time.Monday, 22, 1).Add(1*time.Second), grace)
	require.True(t, ok)
	assert.False(t, exp.State)
}

func TestExpectedStateSkipsMalformed(t *testing.T) {
	bad := sched(1, 25, 0, models.ActionTurnOn, "monday")
	good := sched(2, 7, 0, models.ActionTurnOff, "monday")
	exp, ok := ExpectedState([]models.Schedule{bad, good}, at(time.Monday, 12, 0), grace)
	require.True(t, ok)
	assert.Equal(t, 2, exp.Schedule.ID)

	noDays := models.Schedule{ID: 3, Name: "s", Hour: 8, Minute: 0, Action: models.ActionTurnOn, Enabled: true}
	_, ok = ExpectedState([]models.Schedule{noDays}, at(time.Monday, 12, 0), grace)
	assert.False(t, ok)
}

func TestNextOccurrenceSameDayFuture(t *testing.T) {
	schedules := []models.Schedule{
		sched(1, 22, 0, models.ActionTurnOff, "monday"),
		sched(2, 7, 0, models.ActionTurnOn, "tuesday"),
	}
	now := at(time.Monday, 12, 0)

	occ, ok := NextOccurrence(schedules, now)
	require.True(t, ok)
	assert.Equal(t, 1, occ.Schedule.ID)
	assert.Equal(t, at(time.Monday, 22, 0), occ.FireAt)
	assert.Equal(t, 600, occ.ETA(now))
}

func TestNextOccurrenceWrapsToNextWeek(t *testing.T) {
	schedules := []models.Schedule{sched(1, 7, 0, models.ActionTurnOn, "monday")}
	now := at(time.Monday, 8, 0)

	occ, ok := NextOccurrence(schedules, now)
	require.True(t, ok)
	assert.Equal(t, at(time.Monday, 7, 0).AddDate(0, 0, 7), occ.FireAt)
}

func TestNextOccurrenceNone(t *testing.T) {
	_, ok := NextOccurrence(nil, at(time.Monday, 8, 0))
	assert.False(t, ok)

	disabled := sched(1, 7, 0, models.ActionTurnOn, "monday")
	disabled.Enabled = false
	_, ok = NextOccurrence([]models.Schedule{disabled}, at(time.Monday, 8, 0))
	assert.False(t, ok)
}

func TestNextOccurrenceEveryday(t *testing.T) {
	everyday := sched(1, 22, 0, models.ActionTurnOff,
		"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday")
	now := at(time.Wednesday, 23, 0)

	occ, ok := NextOccurrence([]models.Schedule{everyday}, now)
	require.True(t, ok)
	assert.Equal(t, at(time.Thursday, 22, 0), occ.FireAt)
}
