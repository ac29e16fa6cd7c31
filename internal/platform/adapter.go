package platform

import (
	"context"
	"strings"
	"time"

	"github.com/engage-agent/internal/models"
)

// Identity is the stable account identity extracted by Verify
type Identity struct {
	Username    string
	DisplayName string
	AccountRef  string
}

// Scope carries tenant-supplied scraping scope per platform
type Scope struct {
	Subreddits []string // reddit
	Spaces     []string // quora
	Boards     []string // pinterest
	Channels   []string // youtube channel IDs
}

// RawItem is the single validated product type adapters hand to the
// orchestrator after parsing platform-specific responses.
type RawItem struct {
	Platform string
	URL      string
	Author   string
	Content  string
	PostedAt time.Time
}

// Adapter is the uniform contract every platform implements. Operations
// are stateless across tenants; the credential bundle is always an
// explicit argument. Each call must carry its own bounded timeout.
type Adapter interface {
	// Platform returns the platform name
	Platform() string

	// RequiredFields lists the secret fields a bundle must carry
	RequiredFields() []string

	// RequiresCredentials reports whether Scrape needs a stored bundle.
	// Platforms with public discovery surfaces return false.
	RequiresCredentials() bool

	// Verify confirms the bundle authenticates and extracts an identity
	Verify(ctx context.Context, cred *models.Credential) (*Identity, error)

	// Scrape discovers items matching the keywords. Best-effort: a single
	// keyword's failure must not abort the call; partial results are
	// returned and failures logged.
	Scrape(ctx context.Context, keywords []string, cred *models.Credential, scope Scope) ([]RawItem, error)

	// Post publishes exactly one reply and returns its external URL
	Post(ctx context.Context, targetURL, reply string, cred *models.Credential) (string, error)
}

// CallTimeout bounds every adapter HTTP call so a hung platform degrades
// to a recorded error instead of a stuck pipeline.
const CallTimeout = 60 * time.Second

// MissingFields returns the required secret fields absent from the bundle
func MissingFields(cred *models.Credential, required []string) []string {
	var missing []string
	for _, field := range required {
		if cred == nil || cred.Secrets[field] == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// CookieHeader renders the bundle's structured cookies matching the given
// domain into a Cookie header value. Platforms needing cross-domain
// secrets get only the cookies scoped to the host being called.
func CookieHeader(cred *models.Credential, domain string) string {
	if cred == nil {
		return ""
	}
	var parts []string
	for _, c := range cred.Cookies {
		if c.Domain != "" && !strings.HasSuffix(domain, strings.TrimPrefix(c.Domain, ".")) {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
