package autopost

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/engage-agent/internal/activity"
	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/platform"
	"github.com/engage-agent/internal/session"
	"github.com/engage-agent/internal/storage"
	"github.com/engage-agent/pkg/logger"
)

// PoolLimit caps how many approved items one run considers
const PoolLimit = 50

// DefaultInterPostDelay paces consecutive posts within one run
const DefaultInterPostDelay = 30 * time.Second

// Result summarizes one auto-post run
type Result struct {
	Considered int
	Posted     int
	Skipped    int
	Errors     []string
}

// policy is one platform's posting allowance for this run
type policy struct {
	account   *models.SocialAccount
	remaining int
}

// Engine posts approved replies within per-platform daily caps. Posting
// is strictly sequential with a fixed delay between posts; it is never
// parallelized.
type Engine struct {
	repo     storage.Repository
	registry *platform.Registry
	sessions *session.Store
	sink     activity.Sink
	delay    time.Duration
	log      *logger.Logger

	// sleep is swappable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an auto-post engine. A non-positive delay falls back to
// the default pacing.
func New(repo storage.Repository, registry *platform.Registry, sessions *session.Store, sink activity.Sink, delay time.Duration, log *logger.Logger) *Engine {
	if delay <= 0 {
		delay = DefaultInterPostDelay
	}
	return &Engine{
		repo:     repo,
		registry: registry,
		sessions: sessions,
		sink:     sink,
		delay:    delay,
		log:      log.WithComponent("autopost"),
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run posts approved items best-first until each platform's remaining
// daily allowance is spent. Items beyond an allowance are counted as
// skipped and stay approved for the next run.
func (e *Engine) Run(ctx context.Context, settings *models.WorkspaceSettings) (*Result, error) {
	result := &Result{}
	log := e.log.WithWorkspace(settings.WorkspaceID)
	now := time.Now()

	policies, err := e.buildPolicies(ctx, settings, now, result)
	if err != nil {
		return nil, err
	}

	statusApproved := models.ItemStatusApproved
	items, err := e.repo.ListItems(ctx, storage.ItemFilter{
		WorkspaceID: settings.WorkspaceID,
		Status:      &statusApproved,
		Limit:       PoolLimit,
		OrderBy:     "score",
		OrderDesc:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load approved items: %w", err)
	}
	result.Considered = len(items)

	attempts := 0
	for _, item := range items {
		pol, ok := policies[item.Platform]
		if !ok || pol.remaining <= 0 {
			result.Skipped++
			continue
		}

		reply, tone := item.ResolveReply()
		if reply == "" {
			result.Skipped++
			continue
		}

		// Pace every attempt after the first, successful or not
		if attempts > 0 {
			if err := e.sleep(ctx, e.delay); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("pacing interrupted: %v", err))
				return result, nil
			}
		}
		attempts++

		replyURL, err := e.post(ctx, settings.WorkspaceID, item, reply, pol.account)
		if err != nil {
			if platform.IsAuthRejected(err) {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: item %d: session rejected: %v", item.Platform, item.ID, err))
			} else {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: item %d: %v", item.Platform, item.ID, err))
			}
			continue
		}

		postedAt := time.Now()
		fields := map[string]interface{}{
			"status":            models.ItemStatusPosted,
			"posted_at":         postedAt,
			"posted_account_id": pol.account.ID,
			"reply_url":         replyURL,
			"auto_posted":       true,
			"posted_tone":       tone,
		}
		if err := e.repo.UpdateItemFields(ctx, item.ID, fields); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: item %d: persist post: %v", item.Platform, item.ID, err))
			continue
		}

		pol.remaining--
		result.Posted++

		e.sink.Record(ctx, activity.NewEvent(settings.WorkspaceID, "system", activity.ActionAutoPosted,
			fmt.Sprintf("%d", item.ID), map[string]interface{}{
				"platform":  item.Platform,
				"reply_url": replyURL,
				"tone":      tone,
				"score":     item.Score,
			}))

		log.Info().
			Str("platform", item.Platform).
			Uint("item_id", item.ID).
			Str("reply_url", replyURL).
			Msg("Auto-posted reply")
	}

	log.Info().
		Int("considered", result.Considered).
		Int("posted", result.Posted).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("Auto-post run complete")

	return result, nil
}

// buildPolicies computes each enabled platform's active account and
// remaining daily allowance. The cap counts from local midnight in the
// platform's schedule timezone.
func (e *Engine) buildPolicies(ctx context.Context, settings *models.WorkspaceSettings, now time.Time, result *Result) (map[string]*policy, error) {
	policies := make(map[string]*policy)

	for _, name := range e.registry.Platforms() {
		if !settings.PlatformEnabled(name) {
			continue
		}

		account, err := e.repo.GetActiveAccount(ctx, settings.WorkspaceID, name)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load active account for %s: %w", name, err)
		}

		loc := settings.PostingLocation(name)
		local := now.In(loc)
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

		posted, err := e.repo.CountPostedSince(ctx, settings.WorkspaceID, name, midnight)
		if err != nil {
			return nil, fmt.Errorf("failed to count posts for %s: %w", name, err)
		}

		remaining := settings.DailyLimit(name) - int(posted)
		if remaining <= 0 {
			continue
		}
		policies[name] = &policy{account: account, remaining: remaining}
	}

	return policies, nil
}

// post resolves the active account's credential bundle and publishes
// one reply
func (e *Engine) post(ctx context.Context, workspaceID string, item *models.Item, reply string, account *models.SocialAccount) (string, error) {
	adapter := e.registry.Get(item.Platform)
	if adapter == nil {
		return "", fmt.Errorf("no adapter registered for %s", item.Platform)
	}

	cred, err := e.sessions.Get(ctx, workspaceID, item.Platform, account.AccountIndex)
	if err != nil {
		return "", fmt.Errorf("credential lookup: %w", err)
	}

	return adapter.Post(ctx, item.URL, reply, cred)
}
