package evaluate

import (
	"fmt"
	"sort"

	"github.com/engage-agent/internal/models"
)

// BuildTonePerformance reduces posted items into per-(platform, tone)
// aggregates. Derived state: rebuilt every run, never persisted.
func BuildTonePerformance(items []*models.Item) []models.TonePerformance {
	type key struct {
		platform string
		tone     string
	}

	agg := make(map[key]*models.TonePerformance)
	for _, item := range items {
		if item.Status != models.ItemStatusPosted || item.PostedTone == "" {
			continue
		}
		k := key{platform: item.Platform, tone: item.PostedTone}
		perf, ok := agg[k]
		if !ok {
			perf = &models.TonePerformance{Platform: item.Platform, Tone: item.PostedTone}
			agg[k] = perf
		}
		perf.Posts++
		perf.TotalEngagement += item.Engagement
	}

	result := make([]models.TonePerformance, 0, len(agg))
	for _, perf := range agg {
		perf.AvgEngagement = float64(perf.TotalEngagement) / float64(perf.Posts)
		result = append(result, *perf)
	}

	// Highest-performing tones first so prompt hints lead with them
	sort.Slice(result, func(i, j int) bool {
		return result[i].AvgEngagement > result[j].AvgEngagement
	})
	return result
}

// ToneHints renders one platform's tone aggregates into prompt hint lines
func ToneHints(perf []models.TonePerformance, platform string) []string {
	var hints []string
	for _, p := range perf {
		if p.Platform != platform || p.Posts == 0 {
			continue
		}
		hints = append(hints, fmt.Sprintf("%s: %.1f avg engagement over %d posts", p.Tone, p.AvgEngagement, p.Posts))
	}
	return hints
}
