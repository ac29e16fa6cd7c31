package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/platform"
	"github.com/engage-agent/internal/session"
	"github.com/engage-agent/internal/storage"
	"github.com/engage-agent/pkg/logger"
)

// Result summarizes one discovery run across all platforms
type Result struct {
	Discovered int
	New        int
	Errors     []string
}

// Orchestrator fans discovery out across the enabled platforms and
// upserts what they find
type Orchestrator struct {
	repo     storage.Repository
	registry *platform.Registry
	sessions *session.Store
	log      *logger.Logger
}

// New creates a scrape orchestrator
func New(repo storage.Repository, registry *platform.Registry, sessions *session.Store, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		registry: registry,
		sessions: sessions,
		log:      log.WithComponent("scrape"),
	}
}

// Run scrapes every enabled platform concurrently. One platform's
// failure, including a panic, is captured as a platform-scoped error and
// never aborts the others. Credentialed platforms with no stored bundle
// are skipped silently.
func (o *Orchestrator) Run(ctx context.Context, settings *models.WorkspaceSettings) (*Result, error) {
	log := o.log.WithWorkspace(settings.WorkspaceID)
	scope := scopeFrom(settings)

	result := &Result{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range o.registry.Platforms() {
		if !settings.PlatformEnabled(name) {
			continue
		}
		adapter := o.registry.Get(name)
		if adapter == nil {
			continue
		}

		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					result.Errors = append(result.Errors, fmt.Sprintf("%s: panic: %v", adapter.Platform(), r))
					mu.Unlock()
				}
			}()

			items, err := o.scrapePlatform(gctx, settings, adapter, scope)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", adapter.Platform(), err))
				return nil
			}
			result.Discovered += len(items)

			for _, raw := range items {
				created, err := o.repo.CreateItemIfAbsent(gctx, &models.Item{
					WorkspaceID: settings.WorkspaceID,
					URL:         raw.URL,
					Platform:    raw.Platform,
					Author:      raw.Author,
					Content:     raw.Content,
					Status:      models.ItemStatusNew,
				})
				if err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("%s: store %s: %v", adapter.Platform(), raw.URL, err))
					continue
				}
				if created {
					result.New++
				}
			}
			return nil
		})
	}

	// Goroutines report through result.Errors, never an errgroup error
	_ = g.Wait()

	log.Info().
		Int("discovered", result.Discovered).
		Int("new", result.New).
		Int("errors", len(result.Errors)).
		Msg("Scrape run complete")

	return result, nil
}

// scrapePlatform resolves keywords and credentials for one platform and
// runs its adapter
func (o *Orchestrator) scrapePlatform(ctx context.Context, settings *models.WorkspaceSettings, adapter platform.Adapter, scope platform.Scope) ([]platform.RawItem, error) {
	name := adapter.Platform()

	keywords := settings.EffectiveKeywords(name)
	if len(keywords) == 0 {
		return nil, nil
	}

	// The active account decides which credential bundle to scrape with.
	// Platforms with no account row fall back to the default slot.
	accountIndex := 0
	if account, err := o.repo.GetActiveAccount(ctx, settings.WorkspaceID, name); err == nil {
		accountIndex = account.AccountIndex
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("account lookup: %w", err)
	}

	cred, err := o.sessions.Get(ctx, settings.WorkspaceID, name, accountIndex)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			if adapter.RequiresCredentials() {
				o.log.WithWorkspace(settings.WorkspaceID).Debug().
					Str("platform", name).
					Msg("No credential bundle, skipping platform")
				return nil, nil
			}
			cred = nil
		} else {
			return nil, fmt.Errorf("credential lookup: %w", err)
		}
	}

	return adapter.Scrape(ctx, keywords, cred, scope)
}

func scopeFrom(settings *models.WorkspaceSettings) platform.Scope {
	return platform.Scope{
		Subreddits: settings.Subreddits,
		Spaces:     settings.QuoraSpaces,
		Boards:     settings.PinterestBoards,
		Channels:   settings.YouTubeChannels,
	}
}
