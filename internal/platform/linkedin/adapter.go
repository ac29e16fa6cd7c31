package linkedin

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

	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/platform"
	"github.com/engage-agent/pkg/logger"
	"github.com/engage-agent/pkg/ratelimit"
)

const (
	baseURL      = "https://www.linkedin.com"
	voyagerURL   = baseURL + "/voyager/api"
	platformName = models.PlatformLinkedIn
)

// Adapter implements the platform contract against LinkedIn's voyager API
// using the li_at session cookie. The JSESSIONID cookie doubles as the
// CSRF token voyager expects.
type Adapter struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// New creates a new LinkedIn adapter
func New(limiter *ratelimit.MultiLimiter, log *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: &http.Client{
			Timeout: platform.CallTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		rateLimiter: limiter,
		log:         log.WithComponent("linkedin"),
	}
}

func (a *Adapter) Platform() string          { return platformName }
func (a *Adapter) RequiredFields() []string  { return []string{"li_at", "JSESSIONID"} }
func (a *Adapter) RequiresCredentials() bool { return true }

func (a *Adapter) do(ctx context.Context, cred *models.Credential, method, rawURL string, body interface{}) (*http.Response, error) {
	if err := a.rateLimiter.Wait(ctx, ratelimit.LimiterLinkedIn); err != nil {
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

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	csrf := strings.Trim(cred.Secrets["JSESSIONID"], `"`)
	cookie := fmt.Sprintf(`li_at=%s; JSESSIONID="%s"`, cred.Secrets["li_at"], csrf)
	if extra := platform.CookieHeader(cred, "linkedin.com"); extra != "" {
		cookie = extra
	}
	req.Header.Set("Cookie", cookie)
	req.Header.Set("Csrf-Token", csrf)
	req.Header.Set("Restli-Protocol-Version", "2.0.0")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return a.httpClient.Do(req)
}

// isCheckpoint detects a redirect into LinkedIn's login or security
// checkpoint flow
func isCheckpoint(resp *http.Response) bool {
	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusSeeOther {
		loc := resp.Header.Get("Location")
		return strings.Contains(loc, "/login") || strings.Contains(loc, "/checkpoint")
	}
	return resp.StatusCode == http.StatusUnauthorized
}

// Verify confirms the session cookies authenticate
func (a *Adapter) Verify(ctx context.Context, cred *models.Credential) (*platform.Identity, error) {
	if missing := platform.MissingFields(cred, a.RequiredFields()); len(missing) > 0 {
		return nil, platform.NewCredentialError(platformName, "verify",
			"missing required fields: "+strings.Join(missing, ", "))
	}

	resp, err := a.do(ctx, cred, "GET", voyagerURL+"/me", nil)
	if err != nil {
		return nil, platform.NewTransient(platformName, "verify", "request failed", err)
	}
	defer resp.Body.Close()

	if isCheckpoint(resp) {
		return nil, platform.NewAuthRejected(platformName, "verify", "redirected to login/checkpoint")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, platform.NewTransient(platformName, "verify",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var me struct {
		MiniProfile struct {
			FirstName      string `json:"firstName"`
			LastName       string `json:"lastName"`
			PublicID       string `json:"publicIdentifier"`
			EntityURN      string `json:"entityUrn"`
		} `json:"miniProfile"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, platform.NewTransient(platformName, "verify", "failed to decode profile", err)
	}
	if me.MiniProfile.PublicID == "" {
		return nil, platform.NewAuthRejected(platformName, "verify", "session not recognized")
	}

	return &platform.Identity{
		Username:    me.MiniProfile.PublicID,
		DisplayName: strings.TrimSpace(me.MiniProfile.FirstName + " " + me.MiniProfile.LastName),
		AccountRef:  me.MiniProfile.EntityURN,
	}, nil
}

// contentSearch is the typed shape of a voyager content search response
type contentSearch struct {
	Elements []struct {
		UpdateURN  string `json:"updateUrn"`
		Commentary struct {
			Text string `json:"text"`
		} `json:"commentary"`
		Actor struct {
			Name string `json:"name"`
		} `json:"actor"`
		PermalinkURL string `json:"permalink"`
		CreatedAt    int64  `json:"createdAt"`
	} `json:"elements"`
}

// Scrape searches recent content per keyword
func (a *Adapter) Scrape(ctx context.Context, keywords []string, cred *models.Credential, _ platform.Scope) ([]platform.RawItem, error) {
	if missing := platform.MissingFields(cred, a.RequiredFields()); len(missing) > 0 {
		return nil, platform.NewCredentialError(platformName, "scrape",
			"missing required fields: "+strings.Join(missing, ", "))
	}

	var items []platform.RawItem
	for _, keyword := range keywords {
		found, err := a.search(ctx, cred, keyword)
		if err != nil {
			a.log.Warn().Err(err).Str("keyword", keyword).Msg("Keyword search failed, continuing")
			continue
		}
		items = append(items, found...)
	}

	a.log.Info().Int("count", len(items)).Int("keywords", len(keywords)).Msg("LinkedIn scrape completed")
	return items, nil
}

func (a *Adapter) search(ctx context.Context, cred *models.Credential, keyword string) ([]platform.RawItem, error) {
	q := url.Values{}
	q.Set("keywords", keyword)
	q.Set("origin", "GLOBAL_SEARCH_HEADER")
	q.Set("count", "20")

	resp, err := a.do(ctx, cred, "GET", voyagerURL+"/search/content?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if isCheckpoint(resp) {
		return nil, platform.NewAuthRejected(platformName, "scrape", "session expired")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, platform.NewRateLimited(platformName, "scrape", "throttled")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var result contentSearch
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	items := make([]platform.RawItem, 0, len(result.Elements))
	for _, el := range result.Elements {
		permalink := el.PermalinkURL
		if permalink == "" && el.UpdateURN != "" {
			permalink = baseURL + "/feed/update/" + el.UpdateURN
		}
		if permalink == "" || el.Commentary.Text == "" {
			continue
		}
		items = append(items, platform.RawItem{
			Platform: platformName,
			URL:      permalink,
			Author:   el.Actor.Name,
			Content:  el.Commentary.Text,
			PostedAt: time.UnixMilli(el.CreatedAt),
		})
	}
	return items, nil
}

// Post comments on the update the target URL points at
func (a *Adapter) Post(ctx context.Context, targetURL, reply string, cred *models.Credential) (string, error) {
	if missing := platform.MissingFields(cred, a.RequiredFields()); len(missing) > 0 {
		return "", platform.NewCredentialError(platformName, "post",
			"missing required fields: "+strings.Join(missing, ", "))
	}

	urn, err := updateURNFromURL(targetURL)
	if err != nil {
		return "", platform.NewTransient(platformName, "post", "unrecognized target URL", err)
	}

	payload := map[string]interface{}{
		"commentary": map[string]string{"text": reply},
		"threadUrn":  urn,
	}

	resp, err := a.do(ctx, cred, "POST", voyagerURL+"/voyagerSocialDashComments", payload)
	if err != nil {
		return "", platform.NewTransient(platformName, "post", "request failed", err)
	}
	defer resp.Body.Close()

	if isCheckpoint(resp) {
		return "", platform.NewAuthRejected(platformName, "post", "session expired")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", platform.NewRateLimited(platformName, "post", "throttled")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", platform.NewTransient(platformName, "post",
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var created struct {
		CommentURN string `json:"urn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		// Comment landed but the response shape changed; fall back to the thread URL
		a.log.Warn().Err(err).Msg("Could not decode comment response, using target URL")
		return targetURL, nil
	}

	replyURL := targetURL
	if created.CommentURN != "" {
		replyURL = targetURL + "?commentUrn=" + url.QueryEscape(created.CommentURN)
	}
	a.log.Info().Str("reply_url", replyURL).Msg("Posted LinkedIn comment")
	return replyURL, nil
}

// updateURNFromURL extracts the activity URN from a feed update URL
func updateURNFromURL(rawURL string) (string, error) {
	if idx := strings.Index(rawURL, "urn:li:activity:"); idx != -1 {
		urn := rawURL[idx:]
		urn = strings.SplitN(urn, "?", 2)[0]
		return strings.TrimSuffix(urn, "/"), nil
	}
	return "", fmt.Errorf("no activity urn in %s", rawURL)
}

// Ensure Adapter implements platform.Adapter
var _ platform.Adapter = (*Adapter)(nil)
