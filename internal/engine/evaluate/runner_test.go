package evaluate

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engage-agent/internal/activity"
	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/oracle"
	"github.com/engage-agent/internal/storage"
	"github.com/engage-agent/internal/storage/sqlite"
)

// scriptedTransport answers per prompt so one batch can mix outcomes
type scriptedTransport struct {
	respond func(prompt string) (string, error)
}

func (s *scriptedTransport) Name() string { return "scripted" }

func (s *scriptedTransport) TryRun(ctx context.Context, prompt string) (string, error) {
	return s.respond(prompt)
}

func newRunnerFixture(t *testing.T, respond func(prompt string) (string, error)) (*Runner, storage.Repository) {
	t.Helper()
	repo, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })

	log := testLogger()
	o := oracle.New(log, &scriptedTransport{respond: respond})
	runner := NewRunner(repo, New(o, log), activity.NewLogSink(log), log)
	return runner, repo
}

func seedItem(t *testing.T, repo storage.Repository, url, content string) uint {
	t.Helper()
	item := &models.Item{
		WorkspaceID: "ws1",
		URL:         url,
		Platform:    models.PlatformReddit,
		Content:     content,
		Status:      models.ItemStatusNew,
	}
	created, err := repo.CreateItemIfAbsent(context.Background(), item)
	require.NoError(t, err)
	require.True(t, created)
	return item.ID
}

func defaultSettings() *models.WorkspaceSettings {
	return &models.WorkspaceSettings{
		WorkspaceID:      "ws1",
		Active:           true,
		Profile:          "We build Go tooling",
		Keywords:         models.StringSlice{"golang"},
		EnabledPlatforms: models.StringSlice{models.PlatformReddit},
	}
}

func TestRunnerApprovesAndEvaluates(t *testing.T) {
	runner, repo := newRunnerFixture(t, func(prompt string) (string, error) {
		if strings.Contains(prompt, "HIGH") {
			return `{"relevant": true, "score": 90, "suggestedReply": "great point", "tone": "helpful", "reasoning": "r"}`, nil
		}
		return `{"relevant": true, "score": 40, "suggestedReply": "maybe", "tone": "casual", "reasoning": "r"}`, nil
	})
	ctx := context.Background()

	highID := seedItem(t, repo, "https://a.example", "golang HIGH value question")
	lowID := seedItem(t, repo, "https://b.example", "golang LOW value remark")

	result, err := runner.Run(ctx, defaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Selected)
	assert.Equal(t, 2, result.Evaluated)
	assert.Equal(t, 1, result.Approved)
	assert.Empty(t, result.Errors)

	high, err := repo.GetItemByID(ctx, highID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusApproved, high.Status)
	assert.Equal(t, 90, high.Score)
	assert.Equal(t, "great point", high.SuggestedReply)
	assert.Equal(t, []string{"golang"}, []string(high.MatchedKeywords))

	low, err := repo.GetItemByID(ctx, lowID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusEvaluated, low.Status)
	assert.Equal(t, 40, low.Score)
}

func TestRunnerRevertsFailedItems(t *testing.T) {
	runner, repo := newRunnerFixture(t, func(prompt string) (string, error) {
		if strings.Contains(prompt, "BROKEN") {
			return "", errors.New("connection reset")
		}
		return `{"relevant": true, "score": 75, "suggestedReply": "reply", "tone": "helpful", "reasoning": "r"}`, nil
	})
	ctx := context.Background()

	brokenID := seedItem(t, repo, "https://a.example", "golang BROKEN transport")
	okID := seedItem(t, repo, "https://b.example", "golang fine")

	result, err := runner.Run(ctx, defaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Evaluated)
	assert.Len(t, result.Errors, 1)

	// The failed item goes back to new for the next run, the rest proceed
	broken, err := repo.GetItemByID(ctx, brokenID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusNew, broken.Status)

	ok, err := repo.GetItemByID(ctx, okID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusApproved, ok.Status)
}

func TestRunnerUnparseableOutputIsEvaluated(t *testing.T) {
	runner, repo := newRunnerFixture(t, func(prompt string) (string, error) {
		return "I refuse to answer in JSON today.", nil
	})
	ctx := context.Background()

	id := seedItem(t, repo, "https://a.example", "golang question")

	result, err := runner.Run(ctx, defaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Evaluated)
	assert.Equal(t, 0, result.Approved)

	item, err := repo.GetItemByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusEvaluated, item.Status)
	assert.False(t, item.Relevant)
	assert.Equal(t, 0, item.Score)
}

func TestRunnerNoItemStuckEvaluating(t *testing.T) {
	runner, repo := newRunnerFixture(t, func(prompt string) (string, error) {
		if strings.Contains(prompt, "BROKEN") {
			return "", errors.New("boom")
		}
		return `{"relevant": false, "score": 10, "reasoning": "r"}`, nil
	})
	ctx := context.Background()

	seedItem(t, repo, "https://a.example", "golang BROKEN one")
	seedItem(t, repo, "https://b.example", "golang fine one")

	_, err := runner.Run(ctx, defaultSettings())
	require.NoError(t, err)

	evaluating := models.ItemStatusEvaluating
	stuck, err := repo.ListItems(ctx, storage.ItemFilter{WorkspaceID: "ws1", Status: &evaluating})
	require.NoError(t, err)
	assert.Empty(t, stuck)
}

// verdictPersistFailRepo fails the first multi-field item update, then
// behaves normally. Status-only reverts always go through.
type verdictPersistFailRepo struct {
	storage.Repository
	failed bool
}

func (r *verdictPersistFailRepo) UpdateItemFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	if !r.failed && len(fields) > 1 {
		r.failed = true
		return errors.New("disk full")
	}
	return r.Repository.UpdateItemFields(ctx, id, fields)
}

func TestRunnerRevertsItemOnPersistFailure(t *testing.T) {
	base, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, base.Migrate())
	t.Cleanup(func() { base.Close() })

	repo := &verdictPersistFailRepo{Repository: base}
	log := testLogger()
	o := oracle.New(log, &scriptedTransport{respond: func(prompt string) (string, error) {
		return `{"relevant": true, "score": 80, "suggestedReply": "reply", "tone": "helpful", "reasoning": "r"}`, nil
	}})
	runner := NewRunner(repo, New(o, log), activity.NewLogSink(log), log)
	ctx := context.Background()

	id := seedItem(t, repo, "https://a.example", "golang question")

	result, err := runner.Run(ctx, defaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Evaluated)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "persist verdict")

	// A failed write must not leave the item claimed
	item, err := repo.GetItemByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusNew, item.Status)
}

func TestRunnerRecordsCompetitorOpportunity(t *testing.T) {
	runner, repo := newRunnerFixture(t, func(prompt string) (string, error) {
		return `{
			"relevant": true, "score": 80, "suggestedReply": "we can help", "tone": "helpful",
			"reasoning": "r", "competitorMentioned": "AcmeCorp",
			"competitorSentiment": "negative", "competitorOpportunityScore": 85
		}`, nil
	})
	ctx := context.Background()

	id := seedItem(t, repo, "https://a.example", "golang user unhappy with AcmeCorp")

	settings := defaultSettings()
	settings.Competitors = models.StringSlice{"AcmeCorp"}

	result, err := runner.Run(ctx, settings)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Opportunities)

	item, err := repo.GetItemByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "AcmeCorp", item.CompetitorName)
	assert.Equal(t, "negative", item.CompetitorSentiment)
	assert.Equal(t, 85, item.OpportunityScore)
	assert.True(t, item.Opportunity)
}

func TestRunnerUpdatesKeywordMetrics(t *testing.T) {
	runner, repo := newRunnerFixture(t, func(prompt string) (string, error) {
		return `{"relevant": true, "score": 80, "suggestedReply": "reply", "tone": "helpful", "reasoning": "r"}`, nil
	})
	ctx := context.Background()

	seedItem(t, repo, "https://a.example", "golang thing one")
	seedItem(t, repo, "https://b.example", "golang thing two")

	_, err := runner.Run(ctx, defaultSettings())
	require.NoError(t, err)

	day := time.Now().UTC().Format("2006-01-02")
	metrics, err := repo.ListKeywordMetrics(ctx, "ws1", day)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, "golang", metrics[0].Keyword)
	assert.Equal(t, 2, metrics[0].Matches)
	assert.Equal(t, 2, metrics[0].HighRelevance)
}

func TestRunnerEmptyBatch(t *testing.T) {
	runner, _ := newRunnerFixture(t, func(prompt string) (string, error) {
		t.Fatal("oracle must not be called with nothing to evaluate")
		return "", nil
	})

	result, err := runner.Run(context.Background(), defaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Selected)
}
