package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Default pipeline thresholds
const (
	DefaultAutoApproveThreshold     = 70
	DefaultCompetitorAlertThreshold = 60
	DefaultDailyLimit               = 10
	DefaultTickMinutes              = 15
	MinTickMinutes                  = 5
)

// PlatformSchedule describes one platform's active-hours window
type PlatformSchedule struct {
	Timezone        string `json:"timezone"`
	Weekdays        []int  `json:"weekdays"` // 0 = Sunday
	StartHour       int    `json:"start_hour"`
	EndHour         int    `json:"end_hour"`
	IntervalMinutes int    `json:"interval_minutes"`
}

// Location resolves the schedule timezone, falling back to UTC
func (s PlatformSchedule) Location() *time.Location {
	if s.Timezone != "" {
		if loc, err := time.LoadLocation(s.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}

// IsOpen reports whether the window is open at the given instant
func (s PlatformSchedule) IsOpen(now time.Time) bool {
	local := now.In(s.Location())

	if len(s.Weekdays) > 0 {
		match := false
		for _, d := range s.Weekdays {
			if int(local.Weekday()) == d {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	// Start == End means all day
	if s.StartHour == s.EndHour {
		return true
	}

	hour := local.Hour()
	if s.StartHour < s.EndHour {
		return hour >= s.StartHour && hour < s.EndHour
	}
	// Overnight window, e.g. 22 -> 6
	return hour >= s.StartHour || hour < s.EndHour
}

// ScheduleMap stores per-platform schedules as a JSON column
type ScheduleMap map[string]PlatformSchedule

func (m ScheduleMap) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *ScheduleMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	return json.Unmarshal(asBytes(value), m)
}

// WorkspaceSettings holds one tenant's pipeline configuration.
// Written only by the settings UI; the pipeline reads it.
type WorkspaceSettings struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	WorkspaceID string `gorm:"size:64;uniqueIndex;not null" json:"workspace_id"`
	Name        string `gorm:"size:255" json:"name"`
	Active      bool   `gorm:"default:true" json:"active"`

	// Business profile used in evaluation prompts
	Profile string `gorm:"type:text" json:"profile"`

	Keywords         StringSlice `gorm:"type:json" json:"keywords"`
	KeywordOverrides KeywordMap  `gorm:"type:json" json:"keyword_overrides"`
	EnabledPlatforms StringSlice `gorm:"type:json" json:"enabled_platforms"`

	DailyLimits IntMap `gorm:"type:json" json:"daily_limits"`
	Thresholds  IntMap `gorm:"type:json" json:"thresholds"`

	CustomPrompt string      `gorm:"type:text" json:"custom_prompt"`
	Competitors  StringSlice `gorm:"type:json" json:"competitors"`

	// Tenant-supplied scraping scope
	Subreddits      StringSlice `gorm:"type:json" json:"subreddits"`
	QuoraSpaces     StringSlice `gorm:"type:json" json:"quora_spaces"`
	PinterestBoards StringSlice `gorm:"type:json" json:"pinterest_boards"`
	YouTubeChannels StringSlice `gorm:"type:json" json:"youtube_channels"`

	ToneTesting       bool        `json:"tone_testing"`
	Tones             StringSlice `gorm:"type:json" json:"tones"`
	AutoOptimizeTones bool        `json:"auto_optimize_tones"`

	CompetitorAlertThreshold int `gorm:"default:60" json:"competitor_alert_threshold"`

	Schedules ScheduleMap `gorm:"type:json" json:"schedules"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// EffectiveKeywords returns the platform override when set, else the global set
func (w *WorkspaceSettings) EffectiveKeywords(platform string) []string {
	if kw, ok := w.KeywordOverrides[platform]; ok && len(kw) > 0 {
		return kw
	}
	return w.Keywords
}

// PlatformEnabled reports whether a platform participates in the pipeline
func (w *WorkspaceSettings) PlatformEnabled(platform string) bool {
	for _, p := range w.EnabledPlatforms {
		if p == platform {
			return true
		}
	}
	return false
}

// DailyLimit returns the platform's daily post cap
func (w *WorkspaceSettings) DailyLimit(platform string) int {
	if limit, ok := w.DailyLimits[platform]; ok && limit > 0 {
		return limit
	}
	return DefaultDailyLimit
}

// Threshold returns the platform's auto-approve score threshold
func (w *WorkspaceSettings) Threshold(platform string) int {
	if t, ok := w.Thresholds[platform]; ok && t > 0 {
		return t
	}
	return DefaultAutoApproveThreshold
}

// AlertThreshold returns the competitor-opportunity alert threshold
func (w *WorkspaceSettings) AlertThreshold() int {
	if w.CompetitorAlertThreshold > 0 {
		return w.CompetitorAlertThreshold
	}
	return DefaultCompetitorAlertThreshold
}

// TickInterval computes the scheduler interval as the minimum across all
// platform schedules, defaulting to 15 minutes with a 5 minute floor.
func (w *WorkspaceSettings) TickInterval() time.Duration {
	minutes := 0
	for _, s := range w.Schedules {
		if s.IntervalMinutes <= 0 {
			continue
		}
		if minutes == 0 || s.IntervalMinutes < minutes {
			minutes = s.IntervalMinutes
		}
	}
	if minutes == 0 {
		minutes = DefaultTickMinutes
	}
	if minutes < MinTickMinutes {
		minutes = MinTickMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// AnyWindowOpen reports whether at least one configured platform window is
// open right now. With no schedules configured the pipeline always runs.
func (w *WorkspaceSettings) AnyWindowOpen(now time.Time) bool {
	if len(w.Schedules) == 0 {
		return true
	}
	for _, s := range w.Schedules {
		if s.IsOpen(now) {
			return true
		}
	}
	return false
}

// PostingLocation returns the timezone used for the platform's daily-cap
// midnight boundary: the schedule timezone when configured, else UTC.
func (w *WorkspaceSettings) PostingLocation(platform string) *time.Location {
	if s, ok := w.Schedules[platform]; ok {
		return s.Location()
	}
	return time.UTC
}
