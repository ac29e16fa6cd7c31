package models

import "time"

// KeywordMetric aggregates daily per-keyword evaluation results
type KeywordMetric struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	WorkspaceID string `gorm:"size:64;uniqueIndex:idx_ws_keyword_day" json:"workspace_id"`
	Keyword     string `gorm:"size:255;uniqueIndex:idx_ws_keyword_day;not null" json:"keyword"`
	Day         string `gorm:"size:10;uniqueIndex:idx_ws_keyword_day;not null" json:"day"` // 2006-01-02

	Matches       int     `json:"matches"`
	HighRelevance int     `json:"high_relevance"` // score >= 70
	AvgScore      float64 `json:"avg_score"`

	PlatformCounts IntMap `gorm:"type:json" json:"platform_counts"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// HighRelevanceScore is the score at which an item counts as high relevance
// in keyword metrics
const HighRelevanceScore = 70

// TonePerformance is a derived aggregate over posted items for one
// (workspace, platform, tone). Rebuilt on demand, never stored.
type TonePerformance struct {
	Platform        string  `json:"platform"`
	Tone            string  `json:"tone"`
	Posts           int     `json:"posts"`
	TotalEngagement int     `json:"total_engagement"`
	AvgEngagement   float64 `json:"avg_engagement"`
}
