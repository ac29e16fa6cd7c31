package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/platform"
	"github.com/engage-agent/pkg/logger"
	"github.com/engage-agent/pkg/ratelimit"
)

const (
	baseURL      = "https://www.reddit.com"
	oauthURL     = "https://oauth.reddit.com"
	userAgent    = "web:engage-agent:v1.0"
	platformName = models.PlatformReddit
)

// Adapter implements the platform contract against Reddit's JSON API
type Adapter struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// New creates a new Reddit adapter
func New(limiter *ratelimit.MultiLimiter, log *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: &http.Client{
			Timeout: platform.CallTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Surface login redirects instead of following them
				return http.ErrUseLastResponse
			},
		},
		rateLimiter: limiter,
		log:         log.WithComponent("reddit"),
	}
}

func (a *Adapter) Platform() string          { return platformName }
func (a *Adapter) RequiredFields() []string  { return []string{"reddit_session"} }
func (a *Adapter) RequiresCredentials() bool { return false }

func (a *Adapter) do(ctx context.Context, method, rawURL string, body url.Values, cred *models.Credential) (*http.Response, error) {
	if err := a.rateLimiter.Wait(ctx, ratelimit.LimiterReddit); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	var reqBody *strings.Reader
	if body != nil {
		reqBody = strings.NewReader(body.Encode())
	} else {
		reqBody = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookies := platform.CookieHeader(cred, "reddit.com"); cookies != "" {
		req.Header.Set("Cookie", cookies)
	} else if cred != nil && cred.Secrets["reddit_session"] != "" {
		req.Header.Set("Cookie", "reddit_session="+cred.Secrets["reddit_session"])
	}

	return a.httpClient.Do(req)
}

// isLoginRedirect detects a redirect into Reddit's login flow
func isLoginRedirect(resp *http.Response) bool {
	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusMovedPermanently {
		loc := resp.Header.Get("Location")
		return strings.Contains(loc, "/login") || strings.Contains(loc, "over18")
	}
	return resp.StatusCode == http.StatusUnauthorized
}

// meResponse is the typed shape of /api/me.json
type meResponse struct {
	Data struct {
		Name    string `json:"name"`
		ID      string `json:"id"`
		Created float64 `json:"created_utc"`
	} `json:"data"`
}

// Verify confirms the session cookie authenticates
func (a *Adapter) Verify(ctx context.Context, cred *models.Credential) (*platform.Identity, error) {
	if missing := platform.MissingFields(cred, a.RequiredFields()); len(missing) > 0 {
		return nil, platform.NewCredentialError(platformName, "verify",
			"missing required fields: "+strings.Join(missing, ", "))
	}

	resp, err := a.do(ctx, "GET", baseURL+"/api/me.json", nil, cred)
	if err != nil {
		return nil, platform.NewTransient(platformName, "verify", "request failed", err)
	}
	defer resp.Body.Close()

	if isLoginRedirect(resp) {
		return nil, platform.NewAuthRejected(platformName, "verify", "redirected to login")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, platform.NewTransient(platformName, "verify",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var me meResponse
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, platform.NewTransient(platformName, "verify", "failed to decode profile", err)
	}
	if me.Data.Name == "" {
		// Anonymous response means the session cookie is dead
		return nil, platform.NewAuthRejected(platformName, "verify", "session not recognized")
	}

	return &platform.Identity{
		Username:    me.Data.Name,
		DisplayName: "u/" + me.Data.Name,
		AccountRef:  me.Data.ID,
	}, nil
}

// searchListing is the typed shape of a search.json listing
type searchListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title      string  `json:"title"`
				Selftext   string  `json:"selftext"`
				Author     string  `json:"author"`
				Permalink  string  `json:"permalink"`
				CreatedUTC float64 `json:"created_utc"`
				Stickied   bool    `json:"stickied"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Scrape searches for each keyword, optionally restricted to configured
// subreddits. Individual keyword failures are logged, never raised.
func (a *Adapter) Scrape(ctx context.Context, keywords []string, cred *models.Credential, scope platform.Scope) ([]platform.RawItem, error) {
	var items []platform.RawItem

	for _, keyword := range keywords {
		searchURLs := a.searchURLs(keyword, scope.Subreddits)
		for _, su := range searchURLs {
			found, err := a.search(ctx, su, cred)
			if err != nil {
				a.log.Warn().Err(err).Str("keyword", keyword).Msg("Keyword search failed, continuing")
				continue
			}
			items = append(items, found...)
		}
	}

	a.log.Info().Int("count", len(items)).Int("keywords", len(keywords)).Msg("Reddit scrape completed")
	return items, nil
}

func (a *Adapter) searchURLs(keyword string, subreddits []string) []string {
	q := url.Values{}
	q.Set("q", keyword)
	q.Set("sort", "new")
	q.Set("limit", "25")
	q.Set("t", "week")

	if len(subreddits) == 0 {
		return []string{baseURL + "/search.json?" + q.Encode()}
	}

	urls := make([]string, 0, len(subreddits))
	q.Set("restrict_sr", "1")
	for _, sub := range subreddits {
		urls = append(urls, fmt.Sprintf("%s/r/%s/search.json?%s", baseURL, sub, q.Encode()))
	}
	return urls
}

func (a *Adapter) search(ctx context.Context, searchURL string, cred *models.Credential) ([]platform.RawItem, error) {
	resp, err := a.do(ctx, "GET", searchURL, nil, cred)
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

	var listing searchListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}

	items := make([]platform.RawItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied || post.Permalink == "" {
			continue
		}
		content := post.Title
		if post.Selftext != "" {
			content += "\n\n" + post.Selftext
		}
		items = append(items, platform.RawItem{
			Platform: platformName,
			URL:      baseURL + post.Permalink,
			Author:   post.Author,
			Content:  content,
			PostedAt: time.Unix(int64(post.CreatedUTC), 0),
		})
	}
	return items, nil
}

// commentResponse is the typed shape of /api/comment
type commentResponse struct {
	JSON struct {
		Errors [][]interface{} `json:"errors"`
		Data   struct {
			Things []struct {
				Data struct {
					Permalink string `json:"permalink"`
				} `json:"data"`
			} `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

// Post replies to the submission the target URL points at
func (a *Adapter) Post(ctx context.Context, targetURL, reply string, cred *models.Credential) (string, error) {
	if missing := platform.MissingFields(cred, a.RequiredFields()); len(missing) > 0 {
		return "", platform.NewCredentialError(platformName, "post",
			"missing required fields: "+strings.Join(missing, ", "))
	}

	thingID, err := thingIDFromURL(targetURL)
	if err != nil {
		return "", platform.NewTransient(platformName, "post", "unrecognized target URL", err)
	}

	form := url.Values{}
	form.Set("thing_id", thingID)
	form.Set("text", reply)
	form.Set("api_type", "json")

	resp, err := a.do(ctx, "POST", baseURL+"/api/comment", form, cred)
	if err != nil {
		return "", platform.NewTransient(platformName, "post", "request failed", err)
	}
	defer resp.Body.Close()

	if isLoginRedirect(resp) || resp.StatusCode == http.StatusForbidden {
		return "", platform.NewAuthRejected(platformName, "post", "session expired")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", platform.NewRateLimited(platformName, "post", "throttled")
	}
	if resp.StatusCode != http.StatusOK {
		return "", platform.NewTransient(platformName, "post",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var result commentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", platform.NewTransient(platformName, "post", "failed to decode response", err)
	}
	if len(result.JSON.Errors) > 0 {
		return "", platform.NewTransient(platformName, "post",
			fmt.Sprintf("api error: %v", result.JSON.Errors[0]), nil)
	}
	if len(result.JSON.Data.Things) == 0 {
		return "", platform.NewTransient(platformName, "post", "no comment returned", nil)
	}

	permalink := result.JSON.Data.Things[0].Data.Permalink
	a.log.Info().Str("permalink", permalink).Msg("Posted Reddit comment")
	return baseURL + permalink, nil
}

// thingIDFromURL extracts the t3_ fullname from a submission permalink
func thingIDFromURL(rawURL string) (string, error) {
	parts := strings.Split(rawURL, "/comments/")
	if len(parts) < 2 {
		return "", fmt.Errorf("no submission id in %s", rawURL)
	}
	id := strings.Split(parts[1], "/")[0]
	if id == "" {
		return "", fmt.Errorf("empty submission id in %s", rawURL)
	}
	return "t3_" + id, nil
}

// Ensure Adapter implements platform.Adapter
var _ platform.Adapter = (*Adapter)(nil)
