package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engage-agent/internal/models"
)

func TestBuildTonePerformance(t *testing.T) {
	items := []*models.Item{
		{Status: models.ItemStatusPosted, Platform: models.PlatformReddit, PostedTone: "casual", Engagement: 10},
		{Status: models.ItemStatusPosted, Platform: models.PlatformReddit, PostedTone: "casual", Engagement: 20},
		{Status: models.ItemStatusPosted, Platform: models.PlatformReddit, PostedTone: "expert", Engagement: 5},
		{Status: models.ItemStatusPosted, Platform: models.PlatformTwitter, PostedTone: "casual", Engagement: 100},
		// Ignored: not posted, or no tone recorded
		{Status: models.ItemStatusApproved, Platform: models.PlatformReddit, PostedTone: "casual", Engagement: 999},
		{Status: models.ItemStatusPosted, Platform: models.PlatformReddit, Engagement: 999},
	}

	perf := BuildTonePerformance(items)
	require.Len(t, perf, 3)

	// Sorted by average engagement descending
	assert.Equal(t, models.PlatformTwitter, perf[0].Platform)
	assert.InDelta(t, 100.0, perf[0].AvgEngagement, 0.001)

	assert.Equal(t, "casual", perf[1].Tone)
	assert.Equal(t, 2, perf[1].Posts)
	assert.InDelta(t, 15.0, perf[1].AvgEngagement, 0.001)

	assert.Equal(t, "expert", perf[2].Tone)
}

func TestToneHints(t *testing.T) {
	perf := []models.TonePerformance{
		{Platform: models.PlatformReddit, Tone: "casual", Posts: 2, AvgEngagement: 15},
		{Platform: models.PlatformReddit, Tone: "expert", Posts: 1, AvgEngagement: 5},
		{Platform: models.PlatformTwitter, Tone: "casual", Posts: 1, AvgEngagement: 100},
	}

	hints := ToneHints(perf, models.PlatformReddit)
	require.Len(t, hints, 2)
	assert.Equal(t, "casual: 15.0 avg engagement over 2 posts", hints[0])
	assert.Equal(t, "expert: 5.0 avg engagement over 1 posts", hints[1])

	assert.Nil(t, ToneHints(perf, models.PlatformQuora))
}
