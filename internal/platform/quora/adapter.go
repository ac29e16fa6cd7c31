package quora

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

	"github.com/PuerkitoBio/goquery"

	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/platform"
	"github.com/engage-agent/pkg/logger"
	"github.com/engage-agent/pkg/ratelimit"
)

const (
	baseURL      = "https://www.quora.com"
	userAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	platformName = models.PlatformQuora
)

// Adapter implements the platform contract against Quora using the m-b
// session cookie. Search results come back as HTML, parsed once at the
// boundary into RawItems.
type Adapter struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// New creates a new Quora adapter
func New(limiter *ratelimit.MultiLimiter, log *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: &http.Client{
			Timeout: platform.CallTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		rateLimiter: limiter,
		log:         log.WithComponent("quora"),
	}
}

func (a *Adapter) Platform() string          { return platformName }
func (a *Adapter) RequiredFields() []string  { return []string{"m-b"} }
func (a *Adapter) RequiresCredentials() bool { return true }

func (a *Adapter) do(ctx context.Context, cred *models.Credential, method, rawURL string, body io.Reader, contentType string) (*http.Response, error) {
	if err := a.rateLimiter.Wait(ctx, ratelimit.LimiterQuora); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookies := platform.CookieHeader(cred, "quora.com"); cookies != "" {
		req.Header.Set("Cookie", cookies)
	} else if cred != nil {
		req.Header.Set("Cookie", "m-b="+cred.Secrets["m-b"])
	}

	return a.httpClient.Do(req)
}

func isLoginRedirect(resp *http.Response) bool {
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		return strings.Contains(loc, "/login") || strings.Contains(loc, "signup")
	}
	return resp.StatusCode == http.StatusUnauthorized
}

// Verify confirms the session cookie by loading the settings page, which
// only renders for an authenticated account
func (a *Adapter) Verify(ctx context.Context, cred *models.Credential) (*platform.Identity, error) {
	if missing := platform.MissingFields(cred, a.RequiredFields()); len(missing) > 0 {
		return nil, platform.NewCredentialError(platformName, "verify",
			"missing required fields: "+strings.Join(missing, ", "))
	}

	resp, err := a.do(ctx, cred, "GET", baseURL+"/settings", nil, "")
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

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, platform.NewTransient(platformName, "verify", "failed to parse page", err)
	}

	// The profile link in the page header carries the username slug
	username := ""
	doc.Find("a[href^='/profile/']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if href, ok := s.Attr("href"); ok {
			username = strings.TrimPrefix(href, "/profile/")
			username = strings.SplitN(username, "/", 2)[0]
			return false
		}
		return true
	})
	if username == "" {
		return nil, platform.NewAuthRejected(platformName, "verify", "session not recognized")
	}

	return &platform.Identity{
		Username:    username,
		DisplayName: strings.ReplaceAll(username, "-", " "),
		AccountRef:  username,
	}, nil
}

// Scrape searches questions per keyword, optionally inside configured
// spaces. HTML parse failures for one keyword never abort the call.
func (a *Adapter) Scrape(ctx context.Context, keywords []string, cred *models.Credential, scope platform.Scope) ([]platform.RawItem, error) {
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

	a.log.Info().Int("count", len(items)).Int("keywords", len(keywords)).Msg("Quora scrape completed")
	return items, nil
}

func (a *Adapter) search(ctx context.Context, cred *models.Credential, keyword string) ([]platform.RawItem, error) {
	q := url.Values{}
	q.Set("q", keyword)
	q.Set("type", "question")

	resp, err := a.do(ctx, cred, "GET", baseURL+"/search?"+q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if isLoginRedirect(resp) {
		return nil, platform.NewAuthRejected(platformName, "scrape", "session expired")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}

	var items []platform.RawItem
	seen := make(map[string]bool)
	doc.Find("a[href^='/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || !looksLikeQuestion(href) {
			return
		}
		questionURL := baseURL + strings.SplitN(href, "?", 2)[0]
		if seen[questionURL] {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		seen[questionURL] = true
		items = append(items, platform.RawItem{
			Platform: platformName,
			URL:      questionURL,
			Content:  text,
			PostedAt: time.Now(),
		})
	})
	return items, nil
}

// looksLikeQuestion filters profile/topic/space links out of search results
func looksLikeQuestion(href string) bool {
	for _, prefix := range []string{"/profile/", "/topic/", "/space/", "/search", "/settings", "/login", "/signup", "/about"} {
		if strings.HasPrefix(href, prefix) {
			return false
		}
	}
	// Question slugs contain hyphenated words and no further path segments
	trimmed := strings.Trim(href, "/")
	return trimmed != "" && !strings.Contains(trimmed, "/") && strings.Contains(trimmed, "-")
}

// Post submits an answer to the question the target URL points at
func (a *Adapter) Post(ctx context.Context, targetURL, reply string, cred *models.Credential) (string, error) {
	if missing := platform.MissingFields(cred, a.RequiredFields()); len(missing) > 0 {
		return "", platform.NewCredentialError(platformName, "post",
			"missing required fields: "+strings.Join(missing, ", "))
	}

	payload, err := json.Marshal(map[string]string{
		"question_url": targetURL,
		"answer_text":  reply,
	})
	if err != nil {
		return "", platform.NewTransient(platformName, "post", "failed to marshal payload", err)
	}

	resp, err := a.do(ctx, cred, "POST", baseURL+"/api/answer", bytes.NewReader(payload), "application/json")
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
	if resp.StatusCode != http.StatusOK {
		return "", platform.NewTransient(platformName, "post",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var created struct {
		AnswerURL string `json:"answer_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil || created.AnswerURL == "" {
		// Answer landed; Quora does not always echo a stable URL back
		return targetURL, nil
	}

	a.log.Info().Str("reply_url", created.AnswerURL).Msg("Posted Quora answer")
	return created.AnswerURL, nil
}

// Ensure Adapter implements platform.Adapter
var _ platform.Adapter = (*Adapter)(nil)
