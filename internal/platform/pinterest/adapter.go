package pinterest

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
	baseURL      = "https://www.pinterest.com"
	userAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	platformName = models.PlatformPinterest
)

// Adapter implements the platform contract against Pinterest's internal
// resource API using the _pinterest_sess cookie.
type Adapter struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// New creates a new Pinterest adapter
func New(limiter *ratelimit.MultiLimiter, log *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: &http.Client{
			Timeout: platform.CallTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		rateLimiter: limiter,
		log:         log.WithComponent("pinterest"),
	}
}

func (a *Adapter) Platform() string          { return platformName }
func (a *Adapter) RequiredFields() []string  { return []string{"_pinterest_sess"} }
func (a *Adapter) RequiresCredentials() bool { return true }

func (a *Adapter) do(ctx context.Context, cred *models.Credential, method, rawURL string, form url.Values) (*http.Response, error) {
	if err := a.rateLimiter.Wait(ctx, ratelimit.LimiterPinterest); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if csrf := cred.Secrets["csrftoken"]; csrf != "" {
			req.Header.Set("X-CSRFToken", csrf)
		}
	}
	if cookies := platform.CookieHeader(cred, "pinterest.com"); cookies != "" {
		req.Header.Set("Cookie", cookies)
	} else if cred != nil {
		req.Header.Set("Cookie", "_pinterest_sess="+cred.Secrets["_pinterest_sess"])
	}

	return a.httpClient.Do(req)
}

func isLoginRedirect(resp *http.Response) bool {
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return strings.Contains(resp.Header.Get("Location"), "/login")
	}
	return resp.StatusCode == http.StatusUnauthorized
}

// resourceEnvelope wraps every resource API response
type resourceEnvelope struct {
	ResourceResponse struct {
		Data json.RawMessage `json:"data"`
	} `json:"resource_response"`
}

// Verify confirms the session cookie authenticates
func (a *Adapter) Verify(ctx context.Context, cred *models.Credential) (*platform.Identity, error) {
	if missing := platform.MissingFields(cred, a.RequiredFields()); len(missing) > 0 {
		return nil, platform.NewCredentialError(platformName, "verify",
			"missing required fields: "+strings.Join(missing, ", "))
	}

	resp, err := a.do(ctx, cred, "GET", baseURL+"/resource/UserSettingsResource/get/", nil)
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

	var envelope resourceEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, platform.NewTransient(platformName, "verify", "failed to decode response", err)
	}

	var user struct {
		Username string `json:"username"`
		FullName string `json:"full_name"`
		ID       string `json:"id"`
	}
	if err := json.Unmarshal(envelope.ResourceResponse.Data, &user); err != nil || user.Username == "" {
		return nil, platform.NewAuthRejected(platformName, "verify", "session not recognized")
	}

	return &platform.Identity{
		Username:    user.Username,
		DisplayName: user.FullName,
		AccountRef:  user.ID,
	}, nil
}

// pinData is the typed shape of one pin in a search response
type pinData struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Title       string `json:"title"`
	Pinner      struct {
		Username string `json:"username"`
	} `json:"pinner"`
	CreatedAt string `json:"created_at"`
}

// Scrape searches pins per keyword
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

	a.log.Info().Int("count", len(items)).Int("keywords", len(keywords)).Msg("Pinterest scrape completed")
	return items, nil
}

func (a *Adapter) search(ctx context.Context, cred *models.Credential, keyword string) ([]platform.RawItem, error) {
	options, _ := json.Marshal(map[string]interface{}{
		"options": map[string]interface{}{"query": keyword, "scope": "pins"},
	})
	q := url.Values{}
	q.Set("data", string(options))

	resp, err := a.do(ctx, cred, "GET", baseURL+"/resource/BaseSearchResource/get/?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if isLoginRedirect(resp) {
		return nil, platform.NewAuthRejected(platformName, "scrape", "session expired")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, platform.NewRateLimited(platformName, "scrape", "throttled")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var envelope resourceEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	var data struct {
		Results []pinData `json:"results"`
	}
	if err := json.Unmarshal(envelope.ResourceResponse.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode pins: %w", err)
	}

	items := make([]platform.RawItem, 0, len(data.Results))
	for _, pin := range data.Results {
		if pin.ID == "" {
			continue
		}
		content := pin.Title
		if pin.Description != "" {
			if content != "" {
				content += "\n\n"
			}
			content += pin.Description
		}
		if content == "" {
			continue
		}
		postedAt := time.Now()
		if t, err := time.Parse(time.RFC1123, pin.CreatedAt); err == nil {
			postedAt = t
		}
		items = append(items, platform.RawItem{
			Platform: platformName,
			URL:      fmt.Sprintf("%s/pin/%s/", baseURL, pin.ID),
			Author:   pin.Pinner.Username,
			Content:  content,
			PostedAt: postedAt,
		})
	}
	return items, nil
}

// Post comments on the pin the target URL points at
func (a *Adapter) Post(ctx context.Context, targetURL, reply string, cred *models.Credential) (string, error) {
	if missing := platform.MissingFields(cred, a.RequiredFields()); len(missing) > 0 {
		return "", platform.NewCredentialError(platformName, "post",
			"missing required fields: "+strings.Join(missing, ", "))
	}

	pinID, err := pinIDFromURL(targetURL)
	if err != nil {
		return "", platform.NewTransient(platformName, "post", "unrecognized target URL", err)
	}

	options, _ := json.Marshal(map[string]interface{}{
		"options": map[string]interface{}{"object_id": pinID, "text": reply},
	})
	form := url.Values{}
	form.Set("data", string(options))

	resp, err := a.do(ctx, cred, "POST", baseURL+"/resource/AggregatedCommentResource/create/", form)
	if err != nil {
		return "", platform.NewTransient(platformName, "post", "request failed", err)
	}
	defer resp.Body.Close()

	if isLoginRedirect(resp) {
		return "", platform.NewAuthRejected(platformName, "post", "session expired")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", platform.NewRateLimited(platformName, "post", "throttled")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", platform.NewTransient(platformName, "post",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	a.log.Info().Str("pin_id", pinID).Msg("Posted Pinterest comment")
	return targetURL, nil
}

// pinIDFromURL extracts the pin ID from a pin URL
func pinIDFromURL(rawURL string) (string, error) {
	parts := strings.Split(rawURL, "/pin/")
	if len(parts) < 2 {
		return "", fmt.Errorf("no pin id in %s", rawURL)
	}
	id := strings.Trim(strings.SplitN(parts[1], "?", 2)[0], "/")
	if id == "" {
		return "", fmt.Errorf("empty pin id in %s", rawURL)
	}
	return id, nil
}

// Ensure Adapter implements platform.Adapter
var _ platform.Adapter = (*Adapter)(nil)
