package session

import (
	"context"
	"errors"
	"time"

	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/platform"
	"github.com/engage-agent/internal/storage"
)

// Status classifies whether a stored credential bundle is usable
type Status string

const (
	StatusMissing Status = "missing"
	StatusInvalid Status = "invalid"
	StatusStale   Status = "stale"
	StatusHealthy Status = "healthy"
)

// DefaultStaleAfter is how old a bundle may get before it needs
// reverification
const DefaultStaleAfter = 72 * time.Hour

// Classify is a pure function from (bundle, required fields, now,
// staleness threshold) to a health status. It never consults a platform.
func Classify(cred *models.Credential, required []string, now time.Time, staleAfter time.Duration) Status {
	if cred == nil {
		return StatusMissing
	}
	if len(cred.Secrets) == 0 {
		return StatusInvalid
	}
	if len(platform.MissingFields(cred, required)) > 0 {
		return StatusInvalid
	}
	if cred.Age(now) > staleAfter {
		return StatusStale
	}
	return StatusHealthy
}

// AccountHealth is one account's classification in a health report
type AccountHealth struct {
	Platform     string
	AccountIndex int
	Username     string
	Status       Status
	VerifiedAt   *time.Time
}

// Monitor builds on-demand health views over the session store. The
// classification is a derived read model, never persisted.
type Monitor struct {
	store      *Store
	registry   *platform.Registry
	staleAfter time.Duration
}

// NewMonitor creates a health monitor
func NewMonitor(store *Store, registry *platform.Registry, staleAfter time.Duration) *Monitor {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Monitor{store: store, registry: registry, staleAfter: staleAfter}
}

// Report classifies every enabled platform's accounts for a workspace.
// Enabled platforms with no active account at all report missing.
func (m *Monitor) Report(ctx context.Context, settings *models.WorkspaceSettings, accounts []*models.SocialAccount) []AccountHealth {
	now := time.Now()
	var report []AccountHealth

	byPlatform := make(map[string][]*models.SocialAccount)
	for _, acc := range accounts {
		if acc.Active {
			byPlatform[acc.Platform] = append(byPlatform[acc.Platform], acc)
		}
	}

	for _, platformName := range settings.EnabledPlatforms {
		adapter := m.registry.Get(platformName)
		if adapter == nil {
			continue
		}

		active := byPlatform[platformName]
		if len(active) == 0 {
			report = append(report, AccountHealth{
				Platform: platformName,
				Status:   StatusMissing,
			})
			continue
		}

		for _, acc := range active {
			cred, err := m.store.Get(ctx, settings.WorkspaceID, platformName, acc.AccountIndex)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				// Lookup errors degrade to missing rather than failing the report
				cred = nil
			}
			health := AccountHealth{
				Platform:     platformName,
				AccountIndex: acc.AccountIndex,
				Username:     acc.Username,
				Status:       Classify(cred, adapter.RequiredFields(), now, m.staleAfter),
			}
			if cred != nil {
				health.VerifiedAt = cred.VerifiedAt
				if health.Username == "" {
					health.Username = cred.Username
				}
			}
			report = append(report, health)
		}
	}

	return report
}
