package upstream

import (
	"context"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"
	"golang.org/x/oauth2"
)

// AuthMode is the credential scheme used against the upstream.
type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthBearer AuthMode = "bearer"
	AuthSigned AuthMode = "oauth1"
)

// Credentials is either a bearer token or a four-part OAuth 1.0a key set.
type Credentials struct {
	BearerToken    string
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

// Mode selects the scheme. A bearer token wins over signing keys, and a
// partial signing key set counts as no credentials.
func (c Credentials) Mode() AuthMode {
	if c.BearerToken != "" {
		return AuthBearer
	}
	if c.ConsumerKey != "" && c.ConsumerSecret != "" && c.AccessToken != "" && c.AccessSecret != "" {
		return AuthSigned
	}
	return AuthNone
}

// newHTTPClient builds a client that authorizes every request for mode. It
// returns nil for AuthNone.
func newHTTPClient(creds Credentials, mode AuthMode, timeout time.Duration) *http.Client {
	var c *http.Client
	switch mode {
	case AuthBearer:
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.BearerToken, TokenType: "Bearer"})
		c = oauth2.NewClient(context.Background(), src)
	case AuthSigned:
		// HMAC-SHA1 over the method, canonical URL and parameters, keyed by
		// the consumer and token secrets.
		cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
		c = cfg.Client(oauth1.NoContext, oauth1.NewToken(creds.AccessToken, creds.AccessSecret))
	default:
		return nil
	}
	c.Timeout = timeout
	return c
}
