package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/platform"
	"github.com/engage-agent/pkg/logger"
	"github.com/engage-agent/pkg/ratelimit"
)

const (
	baseURL      = "https://api.twitter.com/2"
	platformName = models.PlatformTwitter
)

// Adapter implements the platform contract against the Twitter v2 API
type Adapter struct {
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// New creates a new Twitter adapter
func New(limiter *ratelimit.MultiLimiter, log *logger.Logger) *Adapter {
	return &Adapter{
		rateLimiter: limiter,
		log:         log.WithComponent("twitter"),
	}
}

func (a *Adapter) Platform() string          { return platformName }
func (a *Adapter) RequiredFields() []string  { return []string{"access_token"} }
func (a *Adapter) RequiresCredentials() bool { return true }

// client builds an OAuth2 HTTP client from the bundle's access token
func (a *Adapter) client(ctx context.Context, cred *models.Credential) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.Secrets["access_token"]})
	client := oauth2.NewClient(ctx, src)
	client.Timeout = platform.CallTimeout
	return client
}

func (a *Adapter) do(ctx context.Context, cred *models.Credential, method, path string, body interface{}) (*http.Response, error) {
	if err := a.rateLimiter.Wait(ctx, ratelimit.LimiterTwitter); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return a.client(ctx, cred).Do(req)
}

// Verify confirms the access token and extracts the account identity
func (a *Adapter) Verify(ctx context.Context, cred *models.Credential) (*platform.Identity, error) {
	if missing := platform.MissingFields(cred, a.RequiredFields()); len(missing) > 0 {
		return nil, platform.NewCredentialError(platformName, "verify",
			"missing required fields: "+strings.Join(missing, ", "))
	}

	resp, err := a.do(ctx, cred, "GET", "/users/me", nil)
	if err != nil {
		return nil, platform.NewTransient(platformName, "verify", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, platform.NewAuthRejected(platformName, "verify", "token rejected")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, platform.NewTransient(platformName, "verify",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var me struct {
		Data struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, platform.NewTransient(platformName, "verify", "failed to decode profile", err)
	}

	return &platform.Identity{
		Username:    me.Data.Username,
		DisplayName: me.Data.Name,
		AccountRef:  me.Data.ID,
	}, nil
}

// searchResponse is the typed shape of /tweets/search/recent
type searchResponse struct {
	Data []struct {
		ID        string    `json:"id"`
		Text      string    `json:"text"`
		AuthorID  string    `json:"author_id"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
}

// Scrape runs a recent search per keyword. Retweets are excluded so the
// same content does not surface many times.
func (a *Adapter) Scrape(ctx context.Context, keywords []string, cred *models.Credential, _ platform.Scope) ([]platform.RawItem, error) {
	var items []platform.RawItem

	for _, keyword := range keywords {
		found, err := a.search(ctx, cred, keyword)
		if err != nil {
			a.log.Warn().Err(err).Str("keyword", keyword).Msg("Keyword search failed, continuing")
			continue
		}
		items = append(items, found...)
	}

	a.log.Info().Int("count", len(items)).Int("keywords", len(keywords)).Msg("Twitter scrape completed")
	return items, nil
}

func (a *Adapter) search(ctx context.Context, cred *models.Credential, keyword string) ([]platform.RawItem, error) {
	q := url.Values{}
	q.Set("query", fmt.Sprintf("%q -is:retweet lang:en", keyword))
	q.Set("max_results", "25")
	q.Set("tweet.fields", "created_at,author_id")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username")

	resp, err := a.do(ctx, cred, "GET", "/tweets/search/recent?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, platform.NewRateLimited(platformName, "scrape", "throttled")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	usernames := make(map[string]string, len(result.Includes.Users))
	for _, u := range result.Includes.Users {
		usernames[u.ID] = u.Username
	}

	items := make([]platform.RawItem, 0, len(result.Data))
	for _, tweet := range result.Data {
		author := usernames[tweet.AuthorID]
		items = append(items, platform.RawItem{
			Platform: platformName,
			URL:      fmt.Sprintf("https://twitter.com/%s/status/%s", author, tweet.ID),
			Author:   author,
			Content:  tweet.Text,
			PostedAt: tweet.CreatedAt,
		})
	}
	return items, nil
}

// Post replies to the tweet the target URL points at
func (a *Adapter) Post(ctx context.Context, targetURL, reply string, cred *models.Credential) (string, error) {
	if missing := platform.MissingFields(cred, a.RequiredFields()); len(missing) > 0 {
		return "", platform.NewCredentialError(platformName, "post",
			"missing required fields: "+strings.Join(missing, ", "))
	}

	tweetID, err := tweetIDFromURL(targetURL)
	if err != nil {
		return "", platform.NewTransient(platformName, "post", "unrecognized target URL", err)
	}

	payload := map[string]interface{}{
		"text": reply,
		"reply": map[string]string{
			"in_reply_to_tweet_id": tweetID,
		},
	}

	resp, err := a.do(ctx, cred, "POST", "/tweets", payload)
	if err != nil {
		return "", platform.NewTransient(platformName, "post", "request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		// fallthrough to decode
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", platform.NewAuthRejected(platformName, "post", "token rejected")
	case http.StatusTooManyRequests:
		return "", platform.NewRateLimited(platformName, "post", "throttled")
	default:
		body, _ := io.ReadAll(resp.Body)
		return "", platform.NewTransient(platformName, "post",
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", platform.NewTransient(platformName, "post", "failed to decode response", err)
	}

	replyURL := fmt.Sprintf("https://twitter.com/%s/status/%s", cred.Username, created.Data.ID)
	a.log.Info().Str("reply_url", replyURL).Msg("Posted Twitter reply")
	return replyURL, nil
}

// tweetIDFromURL extracts the tweet ID from a status URL
func tweetIDFromURL(rawURL string) (string, error) {
	parts := strings.Split(rawURL, "/status/")
	if len(parts) < 2 {
		return "", fmt.Errorf("no tweet id in %s", rawURL)
	}
	id := strings.SplitN(parts[1], "?", 2)[0]
	id = strings.Split(id, "/")[0]
	if id == "" {
		return "", fmt.Errorf("empty tweet id in %s", rawURL)
	}
	return id, nil
}

// Ensure Adapter implements platform.Adapter
var _ platform.Adapter = (*Adapter)(nil)
