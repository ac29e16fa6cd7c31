package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveKeywords(t *testing.T) {
	w := &WorkspaceSettings{
		Keywords: StringSlice{"golang", "testing"},
		KeywordOverrides: KeywordMap{
			PlatformQuora: {"go programming"},
		},
	}

	assert.Equal(t, []string{"go programming"}, w.EffectiveKeywords(PlatformQuora))
	assert.Equal(t, []string{"golang", "testing"}, w.EffectiveKeywords(PlatformReddit))

	// An empty override falls back to the global set
	w.KeywordOverrides[PlatformTwitter] = []string{}
	assert.Equal(t, []string{"golang", "testing"}, w.EffectiveKeywords(PlatformTwitter))
}

func TestDailyLimitAndThresholdDefaults(t *testing.T) {
	w := &WorkspaceSettings{
		DailyLimits: IntMap{PlatformReddit: 3},
		Thresholds:  IntMap{PlatformReddit: 85},
	}

	assert.Equal(t, 3, w.DailyLimit(PlatformReddit))
	assert.Equal(t, DefaultDailyLimit, w.DailyLimit(PlatformTwitter))
	assert.Equal(t, 85, w.Threshold(PlatformReddit))
	assert.Equal(t, DefaultAutoApproveThreshold, w.Threshold(PlatformTwitter))

	assert.Equal(t, DefaultCompetitorAlertThreshold, w.AlertThreshold())
	w.CompetitorAlertThreshold = 75
	assert.Equal(t, 75, w.AlertThreshold())
}

func TestTickInterval(t *testing.T) {
	tests := []struct {
		name      string
		schedules ScheduleMap
		want      time.Duration
	}{
		{
			name:      "no schedules uses default",
			schedules: nil,
			want:      15 * time.Minute,
		},
		{
			name: "minimum across schedules",
			schedules: ScheduleMap{
				PlatformReddit:  {IntervalMinutes: 30},
				PlatformTwitter: {IntervalMinutes: 10},
			},
			want: 10 * time.Minute,
		},
		{
			name: "floor applies",
			schedules: ScheduleMap{
				PlatformReddit: {IntervalMinutes: 1},
			},
			want: 5 * time.Minute,
		},
		{
			name: "zero intervals ignored",
			schedules: ScheduleMap{
				PlatformReddit:  {IntervalMinutes: 0},
				PlatformTwitter: {IntervalMinutes: 20},
			},
			want: 20 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &WorkspaceSettings{Schedules: tt.schedules}
			assert.Equal(t, tt.want, w.TickInterval())
		})
	}
}

func TestScheduleIsOpen(t *testing.T) {
	// Wednesday 2026-03-04 14:30 UTC
	wedAfternoon := time.Date(2026, 3, 4, 14, 30, 0, 0, time.UTC)

	t.Run("inside window", func(t *testing.T) {
		s := PlatformSchedule{StartHour: 9, EndHour: 17}
		assert.True(t, s.IsOpen(wedAfternoon))
	})

	t.Run("outside window", func(t *testing.T) {
		s := PlatformSchedule{StartHour: 18, EndHour: 22}
		assert.False(t, s.IsOpen(wedAfternoon))
	})

	t.Run("weekday mismatch", func(t *testing.T) {
		s := PlatformSchedule{Weekdays: []int{0, 6}, StartHour: 9, EndHour: 17}
		assert.False(t, s.IsOpen(wedAfternoon))
	})

	t.Run("start equals end means all day", func(t *testing.T) {
		s := PlatformSchedule{StartHour: 0, EndHour: 0}
		assert.True(t, s.IsOpen(wedAfternoon))
	})

	t.Run("overnight window", func(t *testing.T) {
		s := PlatformSchedule{StartHour: 22, EndHour: 6}
		assert.False(t, s.IsOpen(wedAfternoon))
		night := time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC)
		assert.True(t, s.IsOpen(night))
		earlyMorning := time.Date(2026, 3, 4, 5, 0, 0, 0, time.UTC)
		assert.True(t, s.IsOpen(earlyMorning))
	})

	t.Run("timezone respected", func(t *testing.T) {
		// 14:30 UTC is 09:30 in New York, inside a 9-17 window
		s := PlatformSchedule{Timezone: "America/New_York", StartHour: 9, EndHour: 17}
		assert.True(t, s.IsOpen(wedAfternoon))

		// But 02:30 UTC is 21:30 the previous evening
		lateUTC := time.Date(2026, 3, 5, 2, 30, 0, 0, time.UTC)
		assert.False(t, s.IsOpen(lateUTC))
	})
}

func TestAnyWindowOpen(t *testing.T) {
	wedAfternoon := time.Date(2026, 3, 4, 14, 30, 0, 0, time.UTC)

	w := &WorkspaceSettings{}
	assert.True(t, w.AnyWindowOpen(wedAfternoon), "no schedules means always open")

	w.Schedules = ScheduleMap{
		PlatformReddit:  {StartHour: 18, EndHour: 22},
		PlatformTwitter: {StartHour: 12, EndHour: 16},
	}
	assert.True(t, w.AnyWindowOpen(wedAfternoon))

	w.Schedules = ScheduleMap{
		PlatformReddit: {StartHour: 18, EndHour: 22},
	}
	assert.False(t, w.AnyWindowOpen(wedAfternoon))
}

func TestPostingLocation(t *testing.T) {
	w := &WorkspaceSettings{
		Schedules: ScheduleMap{
			PlatformReddit: {Timezone: "America/New_York"},
		},
	}

	assert.Equal(t, "America/New_York", w.PostingLocation(PlatformReddit).String())
	assert.Equal(t, time.UTC, w.PostingLocation(PlatformTwitter))
}
