package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/storage"
	"github.com/engage-agent/internal/storage/sqlite"
	"github.com/engage-agent/pkg/logger"
)

func newTestStore(t *testing.T) (*Store, storage.Repository) {
	t.Helper()
	repo, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })

	log := logger.New(logger.Config{Level: "error", Format: "console", Output: "stdout"})
	return NewStore(repo, log), repo
}

func TestStoreGetWorkspaceScope(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveCredential(ctx, &models.Credential{
		WorkspaceID:  "ws1",
		Platform:     models.PlatformReddit,
		AccountIndex: 0,
		Secrets:      models.SecretMap{"reddit_session": "abc"},
	}))

	cred, err := store.Get(ctx, "ws1", models.PlatformReddit, 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", cred.Secrets["reddit_session"])
}

func TestStoreGetLegacyFallback(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	// A bundle stored under the old per-user scope only
	require.NoError(t, repo.SaveCredential(ctx, &models.Credential{
		WorkspaceID:  "migrated-away",
		Platform:     models.PlatformLinkedIn,
		AccountIndex: 0,
		LegacyUserID: "ws1",
		Secrets:      models.SecretMap{"li_at": "token"},
	}))

	cred, err := store.Get(ctx, "ws1", models.PlatformLinkedIn, 0)
	require.NoError(t, err)
	assert.Equal(t, "token", cred.Secrets["li_at"])

	// The legacy scope never served secondary accounts
	_, err = store.Get(ctx, "ws1", models.PlatformLinkedIn, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreGetNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "ws1", models.PlatformTwitter, 0)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorePutStampsVerifiedAt(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	cred := &models.Credential{
		WorkspaceID: "ws1",
		Platform:    models.PlatformQuora,
		Secrets:     models.SecretMap{"m-b": "cookie"},
		Username:    "asker",
	}
	require.NoError(t, store.Put(ctx, cred))
	require.NotNil(t, cred.VerifiedAt)

	got, err := store.Get(ctx, "ws1", models.PlatformQuora, 0)
	require.NoError(t, err)
	require.NotNil(t, got.VerifiedAt)
	assert.Equal(t, "asker", got.Username)
}
