package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ItemStatus represents the current state of a discovered item
type ItemStatus string

const (
	ItemStatusNew        ItemStatus = "new"
	ItemStatusEvaluating ItemStatus = "evaluating"
	ItemStatusEvaluated  ItemStatus = "evaluated"
	ItemStatusApproved   ItemStatus = "approved"
	ItemStatusRejected   ItemStatus = "rejected"
	ItemStatusPosted     ItemStatus = "posted"
)

// ReplyVariation is one alternative reply text labeled with a tone
type ReplyVariation struct {
	Text string `json:"text"`
	Tone string `json:"tone"`
}

// ReplyVariations stores tone variations as a JSON column
type ReplyVariations []ReplyVariation

func (v ReplyVariations) Value() (driver.Value, error) {
	return json.Marshal(v)
}

func (v *ReplyVariations) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	return json.Unmarshal(asBytes(value), v)
}

// Item represents one discovered post/question/pin/video tracked through
// the approval lifecycle. URL is unique per workspace.
type Item struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	WorkspaceID string     `gorm:"size:64;uniqueIndex:idx_workspace_url;not null" json:"workspace_id"`
	URL         string     `gorm:"size:1024;uniqueIndex:idx_workspace_url;not null" json:"url"`
	Platform    string     `gorm:"size:20;index;not null" json:"platform"`
	Author      string     `gorm:"size:255" json:"author"`
	Content     string     `gorm:"type:text" json:"content"`
	Status      ItemStatus `gorm:"size:20;index;default:'new'" json:"status"`

	// Evaluation fields, written by the evaluation runner
	Relevant        bool            `json:"relevant"`
	Score           int             `json:"score"`
	SuggestedReply  string          `gorm:"type:text" json:"suggested_reply"`
	Tone            string          `gorm:"size:50" json:"tone"`
	Reasoning       string          `gorm:"type:text" json:"reasoning"`
	MatchedKeywords StringSlice     `gorm:"type:json" json:"matched_keywords"`
	Variations      ReplyVariations `gorm:"type:json" json:"variations"`

	// Review fields, owned by the manual review surface
	EditedReply       string `gorm:"type:text" json:"edited_reply"`
	SelectedVariation *int   `json:"selected_variation"`

	// Competitor fields
	CompetitorName      string `gorm:"size:255" json:"competitor_name"`
	CompetitorSentiment string `gorm:"size:20" json:"competitor_sentiment"`
	OpportunityScore    int    `json:"opportunity_score"`
	Opportunity         bool   `json:"opportunity"`

	// Posting fields, written by the auto-post engine
	PostedAt        *time.Time `json:"posted_at"`
	PostedAccountID *uint      `json:"posted_account_id"`
	ReplyURL        string     `gorm:"size:1024" json:"reply_url"`
	AutoPosted      bool       `json:"auto_posted"`
	PostedTone      string     `gorm:"size:50" json:"posted_tone"`

	// Engagement collected after posting, feeds tone performance
	Engagement int `json:"engagement"`

	DiscoveredAt time.Time `gorm:"autoCreateTime" json:"discovered_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ResolveReply returns the reply text to post, in priority order:
// manual edit, selected tone variation, engine's single suggestion.
// The second return is the tone the resolved text carries.
func (i *Item) ResolveReply() (string, string) {
	if i.EditedReply != "" {
		return i.EditedReply, i.Tone
	}
	if i.SelectedVariation != nil {
		idx := *i.SelectedVariation
		if idx >= 0 && idx < len(i.Variations) {
			return i.Variations[idx].Text, i.Variations[idx].Tone
		}
	}
	return i.SuggestedReply, i.Tone
}
