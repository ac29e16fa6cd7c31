package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/storage"
	"github.com/engage-agent/pkg/logger"
)

// lookupStrategy is one way to locate a credential bundle. Strategies are
// tried in order; the first hit wins.
type lookupStrategy interface {
	name() string
	find(ctx context.Context, repo storage.Repository, workspaceID, platform string, accountIndex int) (*models.Credential, error)
}

// workspaceScope is the current key: (workspace, platform, account-index)
type workspaceScope struct{}

func (workspaceScope) name() string { return "workspace" }

func (workspaceScope) find(ctx context.Context, repo storage.Repository, workspaceID, platform string, accountIndex int) (*models.Credential, error) {
	return repo.GetCredential(ctx, workspaceID, platform, accountIndex)
}

// legacyUserScope is the superseded key: (user, platform). Kept so bundles
// stored before workspaces existed keep working until they reverify.
type legacyUserScope struct{}

func (legacyUserScope) name() string { return "legacy_user" }

func (legacyUserScope) find(ctx context.Context, repo storage.Repository, workspaceID, platform string, accountIndex int) (*models.Credential, error) {
	if accountIndex != 0 {
		// The legacy scope predates multi-account support
		return nil, storage.ErrNotFound
	}
	return repo.GetCredentialByLegacyUser(ctx, workspaceID, platform)
}

// Store reads and writes credential bundles. Reads walk the strategy
// chain; writes always land on the current workspace scope.
type Store struct {
	repo       storage.Repository
	strategies []lookupStrategy
	log        *logger.Logger
}

// NewStore creates a credential store with the default strategy chain
func NewStore(repo storage.Repository, log *logger.Logger) *Store {
	return &Store{
		repo:       repo,
		strategies: []lookupStrategy{workspaceScope{}, legacyUserScope{}},
		log:        log.WithComponent("session"),
	}
}

// Get returns the bundle for (workspace, platform, account-index), or
// storage.ErrNotFound when no strategy locates one.
func (s *Store) Get(ctx context.Context, workspaceID, platform string, accountIndex int) (*models.Credential, error) {
	for _, strategy := range s.strategies {
		cred, err := strategy.find(ctx, s.repo, workspaceID, platform, accountIndex)
		if err == nil {
			if strategy.name() != "workspace" {
				s.log.Debug().
					Str("strategy", strategy.name()).
					Str("platform", platform).
					Msg("Credential found via fallback scope")
			}
			return cred, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("credential lookup (%s): %w", strategy.name(), err)
		}
	}
	return nil, storage.ErrNotFound
}

// Put stores a freshly verified bundle under the current scope. Callers
// serialize verification per account; Put itself does not lock.
func (s *Store) Put(ctx context.Context, cred *models.Credential) error {
	now := time.Now()
	cred.VerifiedAt = &now
	if err := s.repo.SaveCredential(ctx, cred); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	s.log.Info().
		Str("platform", cred.Platform).
		Int("account_index", cred.AccountIndex).
		Str("username", cred.Username).
		Msg("Credential bundle stored")
	return nil
}
