package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" && dsn != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.Item{},
		&models.WorkspaceSettings{},
		&models.SocialAccount{},
		&models.Credential{},
		&models.KeywordMetric{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

// Item operations

// CreateItemIfAbsent inserts the item unless one already exists for the same
// (workspace, URL). Existing rows are left untouched.
func (r *Repository) CreateItemIfAbsent(ctx context.Context, item *models.Item) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "url"}},
			DoNothing: true,
		}).
		Create(item)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) GetItemByID(ctx context.Context, id uint) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (r *Repository) ListItems(ctx context.Context, filter storage.ItemFilter) ([]*models.Item, error) {
	var items []*models.Item
	query := r.db.WithContext(ctx).Model(&models.Item{})

	if filter.WorkspaceID != "" {
		query = query.Where("workspace_id = ?", filter.WorkspaceID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Platform != nil {
		query = query.Where("platform = ?", *filter.Platform)
	}

	// Ordering
	orderCol := "discovered_at"
	if filter.OrderBy != "" {
		orderCol = filter.OrderBy
	}
	if filter.OrderDesc {
		query = query.Order(orderCol + " DESC")
	} else {
		query = query.Order(orderCol + " ASC")
	}

	// Pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) UpdateItemFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *Repository) SetItemsStatus(ctx context.Context, ids []uint, status models.ItemStatus) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id IN ?", ids).
		Update("status", status).Error
}

func (r *Repository) CountPostedSince(ctx context.Context, workspaceID, platform string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("workspace_id = ? AND platform = ? AND status = ? AND posted_at >= ?",
			workspaceID, platform, models.ItemStatusPosted, since).
		Count(&count).Error
	return count, err
}

// Workspace configuration

func (r *Repository) GetWorkspaceSettings(ctx context.Context, workspaceID string) (*models.WorkspaceSettings, error) {
	var settings models.WorkspaceSettings
	if err := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).First(&settings).Error; err != nil {
		return nil, notFound(err)
	}
	return &settings, nil
}

func (r *Repository) ListActiveWorkspaces(ctx context.Context) ([]*models.WorkspaceSettings, error) {
	var workspaces []*models.WorkspaceSettings
	if err := r.db.WithContext(ctx).Where("active = ?", true).Find(&workspaces).Error; err != nil {
		return nil, err
	}
	return workspaces, nil
}

func (r *Repository) SaveWorkspaceSettings(ctx context.Context, settings *models.WorkspaceSettings) error {
	var existing models.WorkspaceSettings
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", settings.WorkspaceID).
		First(&existing).Error
	if err == nil {
		settings.ID = existing.ID
		settings.CreatedAt = existing.CreatedAt
	}
	return r.db.WithContext(ctx).Save(settings).Error
}

// Social accounts

func (r *Repository) GetActiveAccount(ctx context.Context, workspaceID, platform string) (*models.SocialAccount, error) {
	var account models.SocialAccount
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND platform = ? AND active = ?", workspaceID, platform, true).
		Order("account_index ASC").
		First(&account).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (r *Repository) ListAccounts(ctx context.Context, workspaceID string) ([]*models.SocialAccount, error) {
	var accounts []*models.SocialAccount
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("platform ASC, account_index ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *Repository) SaveAccount(ctx context.Context, account *models.SocialAccount) error {
	var existing models.SocialAccount
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND platform = ? AND account_index = ?",
			account.WorkspaceID, account.Platform, account.AccountIndex).
		First(&existing).Error
	if err == nil {
		account.ID = existing.ID
		account.CreatedAt = existing.CreatedAt
	}
	return r.db.WithContext(ctx).Save(account).Error
}

// Credential bundles

func (r *Repository) GetCredential(ctx context.Context, workspaceID, platform string, accountIndex int) (*models.Credential, error) {
	var cred models.Credential
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND platform = ? AND account_index = ?", workspaceID, platform, accountIndex).
		First(&cred).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &cred, nil
}

func (r *Repository) GetCredentialByLegacyUser(ctx context.Context, legacyUserID, platform string) (*models.Credential, error) {
	var cred models.Credential
	err := r.db.WithContext(ctx).
		Where("legacy_user_id = ? AND platform = ?", legacyUserID, platform).
		First(&cred).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &cred, nil
}

func (r *Repository) SaveCredential(ctx context.Context, cred *models.Credential) error {
	// Upsert - update if exists, create if not
	var existing models.Credential
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND platform = ? AND account_index = ?",
			cred.WorkspaceID, cred.Platform, cred.AccountIndex).
		First(&existing).Error
	if err == nil {
		cred.ID = existing.ID
		cred.CreatedAt = existing.CreatedAt
	}
	return r.db.WithContext(ctx).Save(cred).Error
}

// Keyword metrics

// RecordKeywordMatch upserts the daily metric row for one keyword match,
// maintaining the running average score and per-platform counts.
func (r *Repository) RecordKeywordMatch(ctx context.Context, workspaceID, keyword, day, platform string, score int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var metric models.KeywordMetric
		err := tx.Where("workspace_id = ? AND keyword = ? AND day = ?", workspaceID, keyword, day).
			First(&metric).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metric = models.KeywordMetric{
				WorkspaceID:    workspaceID,
				Keyword:        keyword,
				Day:            day,
				PlatformCounts: models.IntMap{},
			}
		} else if err != nil {
			return err
		}

		metric.AvgScore = (metric.AvgScore*float64(metric.Matches) + float64(score)) / float64(metric.Matches+1)
		metric.Matches++
		if score >= models.HighRelevanceScore {
			metric.HighRelevance++
		}
		if metric.PlatformCounts == nil {
			metric.PlatformCounts = models.IntMap{}
		}
		metric.PlatformCounts[platform]++

		return tx.Save(&metric).Error
	})
}

func (r *Repository) ListKeywordMetrics(ctx context.Context, workspaceID, day string) ([]*models.KeywordMetric, error) {
	var metrics []*models.KeywordMetric
	query := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if day != "" {
		query = query.Where("day = ?", day)
	}
	if err := query.Order("keyword ASC").Find(&metrics).Error; err != nil {
		return nil, err
	}
	return metrics, nil
}

// Ensure Repository implements storage.Repository
var _ storage.Repository = (*Repository)(nil)
