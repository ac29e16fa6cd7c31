package autopost

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engage-agent/internal/activity"
	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/platform"
	"github.com/engage-agent/internal/session"
	"github.com/engage-agent/internal/storage"
	"github.com/engage-agent/internal/storage/sqlite"
	"github.com/engage-agent/pkg/logger"
)

// fakeAdapter records posts and can fail on demand
type fakeAdapter struct {
	name    string
	posted  []string
	tokens  []string
	postErr error
}

func (f *fakeAdapter) Platform() string          { return f.name }
func (f *fakeAdapter) RequiredFields() []string  { return []string{"token"} }
func (f *fakeAdapter) RequiresCredentials() bool { return true }

func (f *fakeAdapter) Verify(ctx context.Context, cred *models.Credential) (*platform.Identity, error) {
	return &platform.Identity{Username: "fake"}, nil
}

func (f *fakeAdapter) Scrape(ctx context.Context, keywords []string, cred *models.Credential, scope platform.Scope) ([]platform.RawItem, error) {
	return nil, nil
}

func (f *fakeAdapter) Post(ctx context.Context, targetURL, reply string, cred *models.Credential) (string, error) {
	if cred != nil {
		f.tokens = append(f.tokens, cred.Secrets["token"])
	}
	if f.postErr != nil {
		return "", f.postErr
	}
	f.posted = append(f.posted, targetURL)
	return targetURL + "#reply", nil
}

type fixture struct {
	engine  *Engine
	repo    storage.Repository
	adapter *fakeAdapter
	delays  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })

	adapter := &fakeAdapter{name: "alpha"}
	registry := platform.NewRegistry()
	registry.Register(adapter)

	log := logger.New(logger.Config{Level: "error", Format: "console", Output: "stdout"})
	sessions := session.NewStore(repo, log)

	f := &fixture{repo: repo, adapter: adapter}
	f.engine = New(repo, registry, sessions, activity.NewLogSink(log), time.Second, log)
	f.engine.sleep = func(ctx context.Context, d time.Duration) error {
		f.delays++
		return nil
	}

	ctx := context.Background()
	require.NoError(t, repo.SaveCredential(ctx, &models.Credential{
		WorkspaceID: "ws1",
		Platform:    "alpha",
		Secrets:     models.SecretMap{"token": "x"},
	}))
	return f
}

func (f *fixture) addAccount(t *testing.T) {
	t.Helper()
	require.NoError(t, f.repo.SaveAccount(context.Background(), &models.SocialAccount{
		WorkspaceID: "ws1",
		Platform:    "alpha",
		Active:      true,
		Username:    "poster",
	}))
}

func settingsFor(limit int) *models.WorkspaceSettings {
	return &models.WorkspaceSettings{
		WorkspaceID:      "ws1",
		Active:           true,
		EnabledPlatforms: models.StringSlice{"alpha"},
		DailyLimits:      models.IntMap{"alpha": limit},
	}
}

func (f *fixture) seedApproved(t *testing.T, n int, baseScore int) []uint {
	t.Helper()
	ctx := context.Background()
	var ids []uint
	for i := 0; i < n; i++ {
		item := &models.Item{
			WorkspaceID:    "ws1",
			URL:            fmt.Sprintf("https://alpha.example/%d", i),
			Platform:       "alpha",
			Status:         models.ItemStatusApproved,
			Score:          baseScore - i,
			SuggestedReply: fmt.Sprintf("reply %d", i),
			Tone:           "helpful",
		}
		created, err := f.repo.CreateItemIfAbsent(ctx, item)
		require.NoError(t, err)
		require.True(t, created)
		ids = append(ids, item.ID)
	}
	return ids
}

func (f *fixture) seedPostedToday(t *testing.T, n int) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < n; i++ {
		item := &models.Item{
			WorkspaceID: "ws1",
			URL:         fmt.Sprintf("https://alpha.example/posted-%d", i),
			Platform:    "alpha",
			Status:      models.ItemStatusPosted,
		}
		created, err := f.repo.CreateItemIfAbsent(ctx, item)
		require.NoError(t, err)
		require.True(t, created)
		require.NoError(t, f.repo.UpdateItemFields(ctx, item.ID, map[string]interface{}{"posted_at": now}))
	}
}

func TestRunRespectsDailyCap(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t)
	ctx := context.Background()

	// 7 approved, cap 5, 2 already posted today: exactly 3 more go out
	f.seedApproved(t, 7, 90)
	f.seedPostedToday(t, 2)

	result, err := f.engine.Run(ctx, settingsFor(5))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Posted)
	assert.Equal(t, 4, result.Skipped)
	assert.Empty(t, result.Errors)
	assert.Len(t, f.adapter.posted, 3)

	// Highest scores go first
	assert.Contains(t, f.adapter.posted, "https://alpha.example/0")
	assert.Contains(t, f.adapter.posted, "https://alpha.example/1")
	assert.Contains(t, f.adapter.posted, "https://alpha.example/2")

	count, err := f.repo.CountPostedSince(ctx, "ws1", "alpha", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestRunStampsPostedItems(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t)
	ctx := context.Background()

	ids := f.seedApproved(t, 1, 80)

	result, err := f.engine.Run(ctx, settingsFor(5))
	require.NoError(t, err)
	require.Equal(t, 1, result.Posted)

	item, err := f.repo.GetItemByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusPosted, item.Status)
	assert.True(t, item.AutoPosted)
	assert.Equal(t, "helpful", item.PostedTone)
	assert.Equal(t, "https://alpha.example/0#reply", item.ReplyURL)
	require.NotNil(t, item.PostedAt)
	require.NotNil(t, item.PostedAccountID)
}

func TestRunSkipsWithoutActiveAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedApproved(t, 2, 80)

	result, err := f.engine.Run(ctx, settingsFor(5))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Posted)
	assert.Equal(t, 2, result.Skipped)
	assert.Empty(t, f.adapter.posted)
}

func TestRunAdapterFailureKeepsItemApproved(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t)
	f.adapter.postErr = errors.New("upstream 500")
	ctx := context.Background()

	ids := f.seedApproved(t, 1, 80)

	result, err := f.engine.Run(ctx, settingsFor(5))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Posted)
	require.Len(t, result.Errors, 1)

	item, err := f.repo.GetItemByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusApproved, item.Status)
}

func TestRunAuthRejectionSurfacedDistinctly(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t)
	f.adapter.postErr = platform.NewAuthRejected("alpha", "post", "login redirect")
	ctx := context.Background()

	f.seedApproved(t, 1, 80)

	result, err := f.engine.Run(ctx, settingsFor(5))
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "session rejected")
}

func TestRunSkipsItemsWithoutResolvableReply(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t)
	ctx := context.Background()

	item := &models.Item{
		WorkspaceID: "ws1",
		URL:         "https://alpha.example/empty",
		Platform:    "alpha",
		Status:      models.ItemStatusApproved,
		Score:       99,
	}
	created, err := f.repo.CreateItemIfAbsent(ctx, item)
	require.NoError(t, err)
	require.True(t, created)

	result, err := f.engine.Run(ctx, settingsFor(5))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Posted)
	assert.Equal(t, 1, result.Skipped)
}

func TestRunUsesActiveAccountBundle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Account 0 is deactivated, account 1 posts now; each has its own bundle
	require.NoError(t, f.repo.SaveCredential(ctx, &models.Credential{
		WorkspaceID:  "ws1",
		Platform:     "alpha",
		AccountIndex: 0,
		Secrets:      models.SecretMap{"token": "retired-token"},
	}))
	require.NoError(t, f.repo.SaveCredential(ctx, &models.Credential{
		WorkspaceID:  "ws1",
		Platform:     "alpha",
		AccountIndex: 1,
		Secrets:      models.SecretMap{"token": "current-token"},
	}))
	require.NoError(t, f.repo.SaveAccount(ctx, &models.SocialAccount{
		WorkspaceID: "ws1", Platform: "alpha", AccountIndex: 0, Username: "old", Active: false,
	}))
	require.NoError(t, f.repo.SaveAccount(ctx, &models.SocialAccount{
		WorkspaceID: "ws1", Platform: "alpha", AccountIndex: 1, Username: "new", Active: true,
	}))

	f.seedApproved(t, 1, 80)

	result, err := f.engine.Run(ctx, settingsFor(5))
	require.NoError(t, err)
	require.Equal(t, 1, result.Posted)
	assert.Equal(t, []string{"current-token"}, f.adapter.tokens)
}

func TestRunPacesBetweenPosts(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t)
	ctx := context.Background()

	f.seedApproved(t, 3, 80)

	result, err := f.engine.Run(ctx, settingsFor(5))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Posted)
	// No delay before the first post, one before each subsequent post
	assert.Equal(t, 2, f.delays)
}

func TestRunPacesAfterFailedAttempt(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t)
	f.adapter.postErr = errors.New("upstream 500")
	ctx := context.Background()

	f.seedApproved(t, 2, 80)

	result, err := f.engine.Run(ctx, settingsFor(5))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Posted)
	require.Len(t, result.Errors, 2)
	// The delay paces attempts, not just successes
	assert.Equal(t, 1, f.delays)
}

func TestRunUsesEditedReply(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t)
	ctx := context.Background()

	ids := f.seedApproved(t, 1, 80)
	require.NoError(t, f.repo.UpdateItemFields(ctx, ids[0], map[string]interface{}{
		"edited_reply": "hand polished reply",
	}))

	result, err := f.engine.Run(ctx, settingsFor(5))
	require.NoError(t, err)
	require.Equal(t, 1, result.Posted)
}
