package platform

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/engage-agent/internal/models"
)

func TestMissingFields(t *testing.T) {
	required := []string{"li_at", "JSESSIONID"}

	assert.Equal(t, required, MissingFields(nil, required))

	cred := &models.Credential{Secrets: models.SecretMap{"li_at": "x"}}
	assert.Equal(t, []string{"JSESSIONID"}, MissingFields(cred, required))

	cred.Secrets["JSESSIONID"] = "y"
	assert.Nil(t, MissingFields(cred, required))
}

func TestCookieHeader(t *testing.T) {
	cred := &models.Credential{
		Cookies: models.CookieRecords{
			{Name: "session", Value: "abc", Domain: ".example.com"},
			{Name: "pref", Value: "dark", Domain: "www.example.com"},
			{Name: "other", Value: "x", Domain: ".elsewhere.net"},
			{Name: "bare", Value: "y"},
		},
	}

	header := CookieHeader(cred, "www.example.com")
	assert.Contains(t, header, "session=abc")
	assert.Contains(t, header, "pref=dark")
	assert.Contains(t, header, "bare=y")
	assert.NotContains(t, header, "other=x")

	assert.Empty(t, CookieHeader(nil, "www.example.com"))
}

func TestAdapterErrorKinds(t *testing.T) {
	credErr := NewCredentialError("reddit", "scrape", "missing reddit_session")
	authErr := NewAuthRejected("linkedin", "post", "redirected to login")
	transientErr := NewTransient("quora", "scrape", "bad gateway", errors.New("502"))
	rateErr := NewRateLimited("twitter", "scrape", "429 returned")

	assert.Equal(t, KindCredential, KindOf(credErr))
	assert.Equal(t, KindAuthRejected, KindOf(authErr))
	assert.Equal(t, KindTransient, KindOf(transientErr))
	assert.Equal(t, KindRateLimited, KindOf(rateErr))

	// Unknown errors default to transient
	assert.Equal(t, KindTransient, KindOf(errors.New("mystery")))

	assert.True(t, IsAuthRejected(authErr))
	assert.False(t, IsAuthRejected(credErr))
	assert.True(t, IsCredential(credErr))

	// Classification survives wrapping
	wrapped := fmt.Errorf("post failed: %w", authErr)
	assert.True(t, IsAuthRejected(wrapped))
	assert.Equal(t, KindAuthRejected, KindOf(wrapped))
}

func TestAdapterErrorMessage(t *testing.T) {
	err := NewTransient("quora", "scrape", "bad gateway", errors.New("502"))
	assert.Contains(t, err.Error(), "quora")
	assert.Contains(t, err.Error(), "scrape")
	assert.Contains(t, err.Error(), "bad gateway")
	assert.ErrorContains(t, err, "502")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("reddit"))
	assert.Empty(t, r.Platforms())
}
