package evaluate

import (
	"context"
	"fmt"
	"time"

	"github.com/engage-agent/internal/activity"
	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/oracle"
	"github.com/engage-agent/internal/storage"
	"github.com/engage-agent/pkg/logger"
)

// BatchLimit caps how many new items one run evaluates
const BatchLimit = 50

// RunResult summarizes one evaluation run
type RunResult struct {
	Selected      int
	Evaluated     int
	Approved      int
	Opportunities int
	Errors        []string
}

// Runner drives evaluation batches: selects pending items, claims them,
// evaluates sequentially, and persists verdicts and keyword metrics.
type Runner struct {
	repo   storage.Repository
	engine *Engine
	sink   activity.Sink
	log    *logger.Logger
}

// NewRunner creates an evaluation runner
func NewRunner(repo storage.Repository, engine *Engine, sink activity.Sink, log *logger.Logger) *Runner {
	return &Runner{
		repo:   repo,
		engine: engine,
		sink:   sink,
		log:    log.WithComponent("evaluate-runner"),
	}
}

// Run evaluates one batch for the workspace. Items are claimed by
// flipping them to evaluating up front so a concurrent run cannot pick
// them up. A failed item reverts to new and the batch continues; only a
// selection failure aborts the run.
func (r *Runner) Run(ctx context.Context, settings *models.WorkspaceSettings) (*RunResult, error) {
	result := &RunResult{}
	log := r.log.WithWorkspace(settings.WorkspaceID)

	statusNew := models.ItemStatusNew
	items, err := r.repo.ListItems(ctx, storage.ItemFilter{
		WorkspaceID: settings.WorkspaceID,
		Status:      &statusNew,
		Limit:       BatchLimit,
		OrderBy:     "discovered_at",
		OrderDesc:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to select items for evaluation: %w", err)
	}
	if len(items) == 0 {
		return result, nil
	}
	result.Selected = len(items)

	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	if err := r.repo.SetItemsStatus(ctx, ids, models.ItemStatusEvaluating); err != nil {
		return nil, fmt.Errorf("failed to claim items: %w", err)
	}

	tonePerf := r.tonePerformance(ctx, settings)

	type keywordMatch struct {
		keyword  string
		platform string
		score    int
	}
	var matches []keywordMatch

	for _, item := range items {
		verdict, err := r.engine.Evaluate(ctx, item.Content, r.profileFor(settings, item.Platform, tonePerf))
		if err != nil {
			// Transport failure: put the item back so the next run retries it
			if revertErr := r.repo.UpdateItemFields(ctx, item.ID, map[string]interface{}{
				"status": models.ItemStatusNew,
			}); revertErr != nil {
				log.Error().Err(revertErr).Uint("item_id", item.ID).Msg("Failed to revert item after evaluation failure")
			}
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: %v", item.ID, err))
			if oracle.IsUnavailable(err) {
				log.Warn().Err(err).Uint("item_id", item.ID).Msg("Oracle unavailable, continuing batch")
			}
			continue
		}

		matched := MatchKeywords(item.Content, settings.EffectiveKeywords(item.Platform))

		status := models.ItemStatusEvaluated
		if ShouldAutoApprove(verdict, settings.Threshold(item.Platform)) {
			status = models.ItemStatusApproved
		}

		fields := map[string]interface{}{
			"status":           status,
			"relevant":         verdict.Relevant,
			"score":            verdict.Score,
			"suggested_reply":  verdict.SuggestedReply,
			"tone":             verdict.Tone,
			"reasoning":        verdict.Reasoning,
			"matched_keywords": models.StringSlice(matched),
			"variations":       models.ReplyVariations(verdict.Variations),
		}

		opportunity := false
		if verdict.CompetitorMentioned != "" {
			opportunity = IsOpportunity(verdict, settings.AlertThreshold())
			fields["competitor_name"] = verdict.CompetitorMentioned
			fields["competitor_sentiment"] = verdict.CompetitorSentiment
			fields["opportunity_score"] = verdict.CompetitorOpportunityScore
			fields["opportunity"] = opportunity
		}

		if err := r.repo.UpdateItemFields(ctx, item.ID, fields); err != nil {
			// Same contract as a transport failure: the item must not
			// stay claimed, so try a status-only revert
			if revertErr := r.repo.UpdateItemFields(ctx, item.ID, map[string]interface{}{
				"status": models.ItemStatusNew,
			}); revertErr != nil {
				log.Error().Err(revertErr).Uint("item_id", item.ID).Msg("Failed to revert item after persist failure")
			}
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: persist verdict: %v", item.ID, err))
			continue
		}

		result.Evaluated++
		for _, kw := range matched {
			matches = append(matches, keywordMatch{keyword: kw, platform: item.Platform, score: verdict.Score})
		}

		if status == models.ItemStatusApproved {
			result.Approved++
			r.sink.Record(ctx, activity.NewEvent(settings.WorkspaceID, "system", activity.ActionAutoApproved,
				fmt.Sprintf("%d", item.ID), map[string]interface{}{
					"platform": item.Platform,
					"score":    verdict.Score,
					"tone":     verdict.Tone,
				}))
		}
		if opportunity {
			result.Opportunities++
			r.sink.Record(ctx, activity.NewEvent(settings.WorkspaceID, "system", activity.ActionOpportunity,
				fmt.Sprintf("%d", item.ID), map[string]interface{}{
					"platform":   item.Platform,
					"competitor": verdict.CompetitorMentioned,
					"sentiment":  verdict.CompetitorSentiment,
					"score":      verdict.CompetitorOpportunityScore,
				}))
		}
	}

	day := time.Now().UTC().Format("2006-01-02")
	for _, m := range matches {
		if err := r.repo.RecordKeywordMatch(ctx, settings.WorkspaceID, m.keyword, day, m.platform, m.score); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("keyword %q: %v", m.keyword, err))
		}
	}

	log.Info().
		Int("selected", result.Selected).
		Int("evaluated", result.Evaluated).
		Int("approved", result.Approved).
		Int("opportunities", result.Opportunities).
		Int("errors", len(result.Errors)).
		Msg("Evaluation run complete")

	return result, nil
}

// profileFor folds workspace settings into an evaluation profile
func (r *Runner) profileFor(settings *models.WorkspaceSettings, platform string, perf []models.TonePerformance) Profile {
	profile := Profile{
		Description:  settings.Profile,
		CustomPrompt: settings.CustomPrompt,
		Competitors:  settings.Competitors,
	}
	if settings.ToneTesting {
		profile.Tones = settings.Tones
		if settings.AutoOptimizeTones {
			profile.ToneHints = ToneHints(perf, platform)
		}
	}
	return profile
}

// tonePerformance rebuilds tone aggregates from posted items when the
// workspace opted into auto-optimization. Failures degrade to no hints.
func (r *Runner) tonePerformance(ctx context.Context, settings *models.WorkspaceSettings) []models.TonePerformance {
	if !settings.ToneTesting || !settings.AutoOptimizeTones {
		return nil
	}
	statusPosted := models.ItemStatusPosted
	posted, err := r.repo.ListItems(ctx, storage.ItemFilter{
		WorkspaceID: settings.WorkspaceID,
		Status:      &statusPosted,
		Limit:       500,
		OrderBy:     "discovered_at",
		OrderDesc:   true,
	})
	if err != nil {
		r.log.WithWorkspace(settings.WorkspaceID).Warn().Err(err).Msg("Failed to load posted items for tone hints")
		return nil
	}
	return BuildTonePerformance(posted)
}
