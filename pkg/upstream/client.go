// Package upstream fetches recent posts for one account from the X/Twitter v2
// recent-search API and normalizes them into types.Item.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/illmade-knight/go-postcache/pkg/types"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL    = "https://api.twitter.com"
	defaultMaxResults = 10
	defaultTimeout    = 10 * time.Second
	searchPath        = "/2/tweets/search/recent"

	maxBodyBytes       = 4 << 20
	maxDiagnosticBytes = 2048
)

// Config holds configuration for the upstream client.
type Config struct {
	BaseURL string
	// Account is the primary account name, without the leading '@'.
	Account string
	// FallbackAccount is tried when the primary query fails. Defaults to the
	// lowercase Account.
	FallbackAccount string
	MaxResults      int
	Timeout         time.Duration
}

// Outcome is the result of one Fetch.
type Outcome struct {
	Items []types.Item
	Mode  types.Mode
	// Query is the query variant that succeeded.
	Query    string
	Fallback bool
	Attempts []types.Attempt
}

// Client fetches and normalizes posts using whichever credential mode is configured.
type Client struct {
	cfg        Config
	auth       AuthMode
	httpClient *http.Client
	queries    []string
	author     string
	now        func() time.Time
	logger     zerolog.Logger
}

// NewClient creates an upstream client. A nil clock defaults to time.Now.
func NewClient(cfg *Config, creds Credentials, now func() time.Time, logger zerolog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("upstream config cannot be nil")
	}
	c := *cfg
	if c.Account == "" {
		return nil, errors.New("upstream account is required")
	}
	c.Account = strings.TrimPrefix(c.Account, "@")
	if c.FallbackAccount == "" {
		c.FallbackAccount = strings.ToLower(c.Account)
	}
	c.FallbackAccount = strings.TrimPrefix(c.FallbackAccount, "@")
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.MaxResults <= 0 {
		c.MaxResults = defaultMaxResults
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if now == nil {
		now = time.Now
	}

	queries := []string{"from:" + c.Account}
	if c.FallbackAccount != c.Account {
		queries = append(queries, "from:"+c.FallbackAccount)
	}

	mode := creds.Mode()
	client := &Client{
		cfg:        c,
		auth:       mode,
		httpClient: newHTTPClient(creds, mode, c.Timeout),
		queries:    queries,
		author:     "@" + c.Account,
		now:        now,
		logger:     logger.With().Str("component", "UpstreamClient").Str("auth", string(mode)).Logger(),
	}
	client.logger.Info().Str("account", c.Account).Strs("queries", queries).Msg("Upstream client initialized.")
	return client, nil
}

// AuthMode reports the credential scheme in use.
func (c *Client) AuthMode() AuthMode {
	return c.auth
}

// Fetch returns the account's recent posts.
//
// Without credentials it returns the demo set and no error. Otherwise each
// query variant is tried in order until one succeeds; if all fail, the Outcome
// has no items and the error is an *UnavailableError carrying every attempt.
func (c *Client) Fetch(ctx context.Context) (*Outcome, error) {
	if c.auth == AuthNone {
		c.logger.Debug().Msg("No credentials configured, serving demo items.")
		return &Outcome{Items: DemoItems(c.author, c.now()), Mode: types.ModeDemo}, nil
	}

	out := &Outcome{Items: []types.Item{}, Mode: types.ModeLive}
	for i, query := range c.queries {
		env, attempt, err := c.search(ctx, query)
		out.Attempts = append(out.Attempts, attempt)
		if err != nil {
			c.logger.Warn().Err(err).Str("query", query).Int("status", attempt.Status).Msg("Upstream query failed.")
			if ctx.Err() != nil {
				break
			}
			continue
		}
		out.Items = normalize(env, c.author, c.now())
		out.Query = query
		out.Fallback = i > 0
		c.logger.Debug().Str("query", query).Int("items", len(out.Items)).Msg("Upstream query succeeded.")
		return out, nil
	}
	return out, &UnavailableError{Attempts: out.Attempts}
}

// search issues one recent-search request. A non-2xx status is a
// *RejectedError, a bad body is ErrMalformedResponse, anything else is
// wrapped in ErrUnavailable.
func (c *Client) search(ctx context.Context, query string) (*searchEnvelope, types.Attempt, error) {
	attempt := types.Attempt{Query: query}

	body, status, err := c.get(ctx, c.searchURL(query))
	attempt.Status = status
	if err != nil {
		attempt.Error = err.Error()
		return nil, attempt, err
	}
	if status < 200 || status > 299 {
		attempt.Body = truncate(body, maxDiagnosticBytes)
		rej := &RejectedError{Status: status, Body: attempt.Body}
		attempt.Error = rej.Error()
		return nil, attempt, rej
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		attempt.Body = truncate(body, maxDiagnosticBytes)
		attempt.Error = err.Error()
		return nil, attempt, err
	}
	return env, attempt, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) searchURL(query string) string {
	v := url.Values{}
	v.Set("query", query)
	v.Set("max_results", strconv.Itoa(c.cfg.MaxResults))
	v.Set("tweet.fields", "created_at,author_id,public_metrics,attachments")
	v.Set("expansions", "author_id,attachments.media_keys")
	v.Set("user.fields", "username,name")
	v.Set("media.fields", "url,preview_image_url,type,width,height")
	return c.cfg.BaseURL + searchPath + "?" + v.Encode()
}

// truncate cuts b to at most n bytes without splitting a UTF-8 sequence.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return string(b[:n])
}
