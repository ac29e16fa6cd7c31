package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/platform"
	"github.com/engage-agent/pkg/logger"
	"github.com/engage-agent/pkg/ratelimit"
)

const (
	feedURL      = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"
	apiURL       = "https://www.googleapis.com/youtube/v3"
	platformName = models.PlatformYouTube
)

// Adapter implements the platform contract for YouTube. Discovery reads
// public channel RSS feeds (no credentials needed); posting comments
// goes through the Data API with the bundle's OAuth access token.
type Adapter struct {
	httpClient  *http.Client
	parser      *gofeed.Parser
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// New creates a new YouTube adapter
func New(limiter *ratelimit.MultiLimiter, log *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: &http.Client{
			Timeout: platform.CallTimeout,
		},
		parser:      gofeed.NewParser(),
		rateLimiter: limiter,
		log:         log.WithComponent("youtube"),
	}
}

func (a *Adapter) Platform() string          { return platformName }
func (a *Adapter) RequiredFields() []string  { return []string{"access_token"} }
func (a *Adapter) RequiresCredentials() bool { return false }

// Verify confirms the access token against the Data API
func (a *Adapter) Verify(ctx context.Context, cred *models.Credential) (*platform.Identity, error) {
	if missing := platform.MissingFields(cred, a.RequiredFields()); len(missing) > 0 {
		return nil, platform.NewCredentialError(platformName, "verify",
			"missing required fields: "+strings.Join(missing, ", "))
	}

	if err := a.rateLimiter.Wait(ctx, ratelimit.LimiterYouTube); err != nil {
		return nil, platform.NewTransient(platformName, "verify", "rate limit error", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET",
		apiURL+"/channels?part=snippet&mine=true", nil)
	if err != nil {
		return nil, platform.NewTransient(platformName, "verify", "failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Secrets["access_token"])

	resp, err := a.httpClient.Do(req)
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

	var channels struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title     string `json:"title"`
				CustomURL string `json:"customUrl"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&channels); err != nil {
		return nil, platform.NewTransient(platformName, "verify", "failed to decode channels", err)
	}
	if len(channels.Items) == 0 {
		return nil, platform.NewAuthRejected(platformName, "verify", "no channel for token")
	}

	ch := channels.Items[0]
	username := ch.Snippet.CustomURL
	if username == "" {
		username = ch.Snippet.Title
	}
	return &platform.Identity{
		Username:    username,
		DisplayName: ch.Snippet.Title,
		AccountRef:  ch.ID,
	}, nil
}

// Scrape reads the configured channels' RSS feeds and keeps videos whose
// title or description mentions a keyword. Feed failures for one channel
// never abort the call.
func (a *Adapter) Scrape(ctx context.Context, keywords []string, _ *models.Credential, scope platform.Scope) ([]platform.RawItem, error) {
	if len(scope.Channels) == 0 {
		a.log.Debug().Msg("No channels configured, nothing to scrape")
		return nil, nil
	}

	var items []platform.RawItem
	for _, channel := range scope.Channels {
		if err := a.rateLimiter.Wait(ctx, ratelimit.LimiterYouTube); err != nil {
			return items, platform.NewTransient(platformName, "scrape", "rate limit error", err)
		}

		feed, err := a.parser.ParseURLWithContext(fmt.Sprintf(feedURL, channel), ctx)
		if err != nil {
			a.log.Warn().Err(err).Str("channel", channel).Msg("Channel feed failed, continuing")
			continue
		}

		for _, entry := range feed.Items {
			if !matchesAny(entry.Title+" "+entry.Description, keywords) {
				continue
			}
			postedAt := time.Now()
			if entry.PublishedParsed != nil {
				postedAt = *entry.PublishedParsed
				// Stale videos rarely get comment traction
				if time.Since(postedAt) > 14*24*time.Hour {
					continue
				}
			}
			author := ""
			if entry.Author != nil {
				author = entry.Author.Name
			}
			items = append(items, platform.RawItem{
				Platform: platformName,
				URL:      entry.Link,
				Author:   author,
				Content:  strings.TrimSpace(entry.Title + "\n\n" + entry.Description),
				PostedAt: postedAt,
			})
		}
	}

	a.log.Info().Int("count", len(items)).Int("channels", len(scope.Channels)).Msg("YouTube scrape completed")
	return items, nil
}

func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Post adds a top-level comment to the video the target URL points at
func (a *Adapter) Post(ctx context.Context, targetURL, reply string, cred *models.Credential) (string, error) {
	if missing := platform.MissingFields(cred, a.RequiredFields()); len(missing) > 0 {
		return "", platform.NewCredentialError(platformName, "post",
			"missing required fields: "+strings.Join(missing, ", "))
	}

	videoID, err := videoIDFromURL(targetURL)
	if err != nil {
		return "", platform.NewTransient(platformName, "post", "unrecognized target URL", err)
	}

	if err := a.rateLimiter.Wait(ctx, ratelimit.LimiterYouTube); err != nil {
		return "", platform.NewTransient(platformName, "post", "rate limit error", err)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"snippet": map[string]interface{}{
			"videoId": videoID,
			"topLevelComment": map[string]interface{}{
				"snippet": map[string]string{"textOriginal": reply},
			},
		},
	})

	req, err := http.NewRequestWithContext(ctx, "POST",
		apiURL+"/commentThreads?part=snippet", bytes.NewReader(payload))
	if err != nil {
		return "", platform.NewTransient(platformName, "post", "failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Secrets["access_token"])
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", platform.NewTransient(platformName, "post", "request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		// fallthrough to decode
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", platform.NewAuthRejected(platformName, "post", "token rejected")
	case http.StatusTooManyRequests:
		return "", platform.NewRateLimited(platformName, "post", "quota exceeded")
	default:
		body, _ := io.ReadAll(resp.Body)
		return "", platform.NewTransient(platformName, "post",
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", platform.NewTransient(platformName, "post", "failed to decode response", err)
	}

	replyURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s&lc=%s", videoID, created.ID)
	a.log.Info().Str("reply_url", replyURL).Msg("Posted YouTube comment")
	return replyURL, nil
}

// videoIDFromURL extracts the video ID from watch and short URLs
func videoIDFromURL(rawURL string) (string, error) {
	if idx := strings.Index(rawURL, "v="); idx != -1 {
		id := rawURL[idx+2:]
		id = strings.SplitN(id, "&", 2)[0]
		if id != "" {
			return id, nil
		}
	}
	if idx := strings.Index(rawURL, "youtu.be/"); idx != -1 {
		id := rawURL[idx+len("youtu.be/"):]
		id = strings.SplitN(id, "?", 2)[0]
		if id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("no video id in %s", rawURL)
}

// Ensure Adapter implements platform.Adapter
var _ platform.Adapter = (*Adapter)(nil)
