package storage

import (
	"context"
	"errors"
	"time"

	"github.com/engage-agent/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for data persistence
type Repository interface {
	// Item operations
	CreateItemIfAbsent(ctx context.Context, item *models.Item) (bool, error)
	GetItemByID(ctx context.Context, id uint) (*models.Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]*models.Item, error)
	UpdateItemFields(ctx context.Context, id uint, fields map[string]interface{}) error
	SetItemsStatus(ctx context.Context, ids []uint, status models.ItemStatus) error
	CountPostedSince(ctx context.Context, workspaceID, platform string, since time.Time) (int64, error)

	// Workspace configuration (the pipeline only reads it)
	GetWorkspaceSettings(ctx context.Context, workspaceID string) (*models.WorkspaceSettings, error)
	ListActiveWorkspaces(ctx context.Context) ([]*models.WorkspaceSettings, error)
	SaveWorkspaceSettings(ctx context.Context, settings *models.WorkspaceSettings) error

	// Social accounts
	GetActiveAccount(ctx context.Context, workspaceID, platform string) (*models.SocialAccount, error)
	ListAccounts(ctx context.Context, workspaceID string) ([]*models.SocialAccount, error)
	SaveAccount(ctx context.Context, account *models.SocialAccount) error

	// Credential bundles
	GetCredential(ctx context.Context, workspaceID, platform string, accountIndex int) (*models.Credential, error)
	GetCredentialByLegacyUser(ctx context.Context, legacyUserID, platform string) (*models.Credential, error)
	SaveCredential(ctx context.Context, cred *models.Credential) error

	// Keyword metrics
	RecordKeywordMatch(ctx context.Context, workspaceID, keyword, day, platform string, score int) error
	ListKeywordMetrics(ctx context.Context, workspaceID, day string) ([]*models.KeywordMetric, error)

	// Maintenance
	Close() error
	Migrate() error
}

// ItemFilter defines filtering options for items
type ItemFilter struct {
	WorkspaceID string
	Status      *models.ItemStatus
	Platform    *string
	Limit       int
	Offset      int
	OrderBy     string // "score", "discovered_at"
	OrderDesc   bool
}

// DefaultItemFilter returns a filter with sensible defaults
func DefaultItemFilter(workspaceID string) ItemFilter {
	return ItemFilter{
		WorkspaceID: workspaceID,
		Limit:       50,
		OrderBy:     "discovered_at",
		OrderDesc:   true,
	}
}
