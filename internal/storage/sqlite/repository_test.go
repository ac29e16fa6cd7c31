package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/storage"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCreateItemIfAbsent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	item := &models.Item{
		WorkspaceID: "ws1",
		URL:         "https://reddit.com/r/golang/comments/abc/",
		Platform:    models.PlatformReddit,
		Content:     "first",
		Status:      models.ItemStatusNew,
	}

	created, err := repo.CreateItemIfAbsent(ctx, item)
	require.NoError(t, err)
	assert.True(t, created)

	// Same workspace and URL is a no-op
	dup := &models.Item{
		WorkspaceID: "ws1",
		URL:         "https://reddit.com/r/golang/comments/abc/",
		Platform:    models.PlatformReddit,
		Content:     "second",
		Status:      models.ItemStatusNew,
	}
	created, err = repo.CreateItemIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	items, err := repo.ListItems(ctx, storage.ItemFilter{WorkspaceID: "ws1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "first", items[0].Content)

	// A different workspace may track the same URL
	other := &models.Item{
		WorkspaceID: "ws2",
		URL:         "https://reddit.com/r/golang/comments/abc/",
		Platform:    models.PlatformReddit,
		Status:      models.ItemStatusNew,
	}
	created, err = repo.CreateItemIfAbsent(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestListItemsFilterAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	scores := []int{40, 90, 70}
	for i, score := range scores {
		item := &models.Item{
			WorkspaceID: "ws1",
			URL:         "https://example.com/" + string(rune('a'+i)),
			Platform:    models.PlatformTwitter,
			Status:      models.ItemStatusApproved,
			Score:       score,
		}
		_, err := repo.CreateItemIfAbsent(ctx, item)
		require.NoError(t, err)
	}

	approved := models.ItemStatusApproved
	items, err := repo.ListItems(ctx, storage.ItemFilter{
		WorkspaceID: "ws1",
		Status:      &approved,
		OrderBy:     "score",
		OrderDesc:   true,
	})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, 90, items[0].Score)
	assert.Equal(t, 70, items[1].Score)
	assert.Equal(t, 40, items[2].Score)
}

func TestSetItemsStatusAndUpdateFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var ids []uint
	for _, url := range []string{"https://a.example", "https://b.example"} {
		item := &models.Item{WorkspaceID: "ws1", URL: url, Platform: models.PlatformQuora, Status: models.ItemStatusNew}
		_, err := repo.CreateItemIfAbsent(ctx, item)
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}

	require.NoError(t, repo.SetItemsStatus(ctx, ids, models.ItemStatusEvaluating))

	for _, id := range ids {
		item, err := repo.GetItemByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.ItemStatusEvaluating, item.Status)
	}

	require.NoError(t, repo.UpdateItemFields(ctx, ids[0], map[string]interface{}{
		"status":          models.ItemStatusApproved,
		"score":           85,
		"suggested_reply": "Try the standard library first.",
		"tone":            "helpful",
	}))

	item, err := repo.GetItemByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusApproved, item.Status)
	assert.Equal(t, 85, item.Score)
	assert.Equal(t, "helpful", item.Tone)
}

func TestCountPostedSince(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	earlier := now.Add(-2 * time.Hour)
	yesterday := now.Add(-30 * time.Hour)

	posts := []struct {
		url      string
		postedAt time.Time
	}{
		{"https://x.example/1", earlier},
		{"https://x.example/2", earlier},
		{"https://x.example/3", yesterday},
	}
	for _, p := range posts {
		item := &models.Item{WorkspaceID: "ws1", URL: p.url, Platform: models.PlatformTwitter, Status: models.ItemStatusPosted}
		_, err := repo.CreateItemIfAbsent(ctx, item)
		require.NoError(t, err)
		require.NoError(t, repo.UpdateItemFields(ctx, item.ID, map[string]interface{}{"posted_at": p.postedAt}))
	}

	count, err := repo.CountPostedSince(ctx, "ws1", models.PlatformTwitter, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = repo.CountPostedSince(ctx, "ws1", models.PlatformReddit, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCredentialLookups(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cred := &models.Credential{
		WorkspaceID:  "ws1",
		Platform:     models.PlatformReddit,
		AccountIndex: 0,
		LegacyUserID: "user-42",
		Secrets:      models.SecretMap{"reddit_session": "abc"},
	}
	require.NoError(t, repo.SaveCredential(ctx, cred))

	got, err := repo.GetCredential(ctx, "ws1", models.PlatformReddit, 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Secrets["reddit_session"])

	_, err = repo.GetCredential(ctx, "ws1", models.PlatformReddit, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	legacy, err := repo.GetCredentialByLegacyUser(ctx, "user-42", models.PlatformReddit)
	require.NoError(t, err)
	assert.Equal(t, got.ID, legacy.ID)

	// Saving again updates in place
	cred.Secrets["reddit_session"] = "def"
	require.NoError(t, repo.SaveCredential(ctx, cred))

	again, err := repo.GetCredential(ctx, "ws1", models.PlatformReddit, 0)
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)
	assert.Equal(t, "def", again.Secrets["reddit_session"])
}

func TestRecordKeywordMatch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	day := "2026-03-01"
	require.NoError(t, repo.RecordKeywordMatch(ctx, "ws1", "golang", day, models.PlatformReddit, 80))
	require.NoError(t, repo.RecordKeywordMatch(ctx, "ws1", "golang", day, models.PlatformTwitter, 60))
	require.NoError(t, repo.RecordKeywordMatch(ctx, "ws1", "golang", day, models.PlatformReddit, 40))

	metrics, err := repo.ListKeywordMetrics(ctx, "ws1", day)
	require.NoError(t, err)
	require.Len(t, metrics, 1)

	m := metrics[0]
	assert.Equal(t, 3, m.Matches)
	assert.Equal(t, 1, m.HighRelevance)
	assert.InDelta(t, 60.0, m.AvgScore, 0.001)
	assert.Equal(t, 2, m.PlatformCounts[models.PlatformReddit])
	assert.Equal(t, 1, m.PlatformCounts[models.PlatformTwitter])
}

func TestWorkspaceSettingsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	settings := &models.WorkspaceSettings{
		WorkspaceID:      "ws1",
		Name:             "Acme",
		Active:           true,
		Keywords:         models.StringSlice{"golang", "testing"},
		EnabledPlatforms: models.StringSlice{models.PlatformReddit},
		DailyLimits:      models.IntMap{models.PlatformReddit: 5},
		Schedules: models.ScheduleMap{
			models.PlatformReddit: {Timezone: "America/New_York", StartHour: 9, EndHour: 17},
		},
	}
	require.NoError(t, repo.SaveWorkspaceSettings(ctx, settings))

	got, err := repo.GetWorkspaceSettings(ctx, "ws1")
	require.NoError(t, err)
	assert.Equal(t, []string{"golang", "testing"}, []string(got.Keywords))
	assert.Equal(t, 5, got.DailyLimit(models.PlatformReddit))
	assert.Equal(t, "America/New_York", got.Schedules[models.PlatformReddit].Timezone)

	_, err = repo.GetWorkspaceSettings(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	active, err := repo.ListActiveWorkspaces(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
