package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeekdays(t *testing.T) {
	testCases := []struct {
		name    string
		input   []string
		want    Weekdays
		wantErr bool
	}{
		{name: "normalizes case and whitespace", input: []string{"Monday", " friday "}, want: Weekdays{"monday", "friday"}},
		{name: "drops duplicates", input: []string{"monday", "monday"}, want: Weekdays{"monday"}},
		{name: "rejects empty", input: nil, wantErr: true},
		{name: "rejects unknown name", input: []string{"monday", "blursday"}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseWeekdays(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWeekdaysNumbers(t *testing.T) {
	w := Weekdays{"sunday", "wednesday", "saturday"}
	assert.Equal(t, []int{0, 3, 6}, w.Numbers())
}

func TestWeekdaysContains(t *testing.T) {
	w := Weekdays{"monday", "thursday"}
	assert.True(t, w.Contains(time.Monday))
	assert.True(t, w.Contains(time.Thursday))
	assert.False(t, w.Contains(time.Sunday))
}

func TestScheduleValidate(t *testing.T) {
	valid := Schedule{Name: "Evening OFF", Hour: 22, Minute: 0, Action: ActionTurnOff, Days: Weekdays{"monday"}}
	require.NoError(t, valid.Validate())

	testCases := []struct {
		name   string
		mutate func(*Schedule)
	}{
		{"missing name", func(s *Schedule) { s.Name = "" }},
		{"hour out of range", func(s *Schedule) { s.Hour = 24 }},
		{"minute out of range", func(s *Schedule) { s.Minute = 60 }},
		{"negative hour", func(s *Schedule) { s.Hour = -1 }},
		{"bad action", func(s *Schedule) { s.Action = "toggle" }},
		{"empty days", func(s *Schedule) { s.Days = nil }},
		{"unknown day", func(s *Schedule) { s.Days = Weekdays{"blursday"} }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := valid
			tc.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}
