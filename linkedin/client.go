// Package linkedin publishes image posts through the LinkedIn REST API.
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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/scipunch/technews/retry"
)

const (
	defaultAPIBase    = "https://api.linkedin.com"
	defaultOAuthURL   = "https://www.linkedin.com/oauth/v2/accessToken"
	defaultAPIVersion = "202506"
	restliVersion     = "2.0.0"

	maxResponseBody = 1 << 20
)

// Visibility of a created post
type Visibility string

const (
	VisibilityPublic      Visibility = "PUBLIC"
	VisibilityConnections Visibility = "CONNECTIONS"
)

type Config struct {
	APIBase    string
	OAuthURL   string
	APIVersion string // YYYYMM

	ClientID     string
	ClientSecret string
	AuthorURN    string
	AccessToken  string
	RefreshToken string
	Visibility   Visibility

	MaxAttempts       int
	Timeout           time.Duration
	UploadTimeout     time.Duration
	RequestsPerSecond float64 // 0 disables spacing
}

// Client talks to LinkedIn with retries, token refresh and typed errors
type Client struct {
	cfg     Config
	http    *http.Client
	upload  *http.Client
	tokens  TokenStore
	limiter *rate.Limiter
	policy  retry.Policy
	log     *zap.Logger
	now     func() time.Time
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithTokenStore(s TokenStore) Option {
	return func(c *Client) { c.tokens = s }
}

// WithSleep replaces the wait between retries
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.policy.Sleep = sleep }
}

func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = rt
		c.upload.Transport = rt
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.OAuthURL == "" {
		cfg.OAuthURL = defaultOAuthURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.Visibility == "" {
		cfg.Visibility = VisibilityPublic
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = retry.DefaultMaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 60 * time.Second
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		upload: &http.Client{Timeout: cfg.UploadTimeout},
		policy: retry.Policy{MaxAttempts: cfg.MaxAttempts},
		log:    zap.NewNop(),
		now:    time.Now,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// requestFunc builds a fresh request for every attempt so bodies can be replayed
type requestFunc func(ctx context.Context) (*http.Request, error)

// send runs build through the retry policy. The returned response body is fully
// buffered, so callers never hold a network connection. A transport failure on
// the last attempt becomes a *NetworkError.
func (c *Client) send(ctx context.Context, client *http.Client, target string, build requestFunc) (*http.Response, error) {
	policy := c.policy
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		c.log.Warn("retrying linkedin request",
			zap.String("url", target),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	resp, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) (*http.Response, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return c.roundTrip(client, req)
	}, retry.HTTPClassifier)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &NetworkError{URL: target, Err: err}
	}
	c.log.Debug("linkedin response", zap.String("url", target), zap.Int("status", resp.StatusCode))
	return resp, nil
}

func (c *Client) roundTrip(client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body with %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func (c *Client) setAPIHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Restli-Protocol-Version", restliVersion)
	req.Header.Set("LinkedIn-Version", c.cfg.APIVersion)
}

func (c *Client) postJSON(ctx context.Context, target, token string, payload any) (*http.Response, error) {
	blob, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request with %w", err)
	}
	return c.send(ctx, c.http, target, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(blob))
		if err != nil {
			return nil, err
		}
		c.setAPIHeaders(req, token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// Token returns the access token to use, refreshing it when a refresh token is configured.
// The configured token wins over the stored one, which is only read when none is configured.
// Refresh failures are logged and that token is returned instead.
func (c *Client) Token(ctx context.Context) string {
	cached := c.cfg.AccessToken
	if cached == "" && c.tokens != nil {
		tok, ok, err := c.tokens.Load(ctx)
		if err != nil {
			c.log.Warn("failed to load cached token", zap.Error(err))
		} else if ok {
			cached = tok.Value
		}
	}

	if c.cfg.RefreshToken == "" {
		return cached
	}

	fresh, err := c.refresh(ctx)
	if err != nil {
		c.log.Warn("token refresh failed, using cached token", zap.Error(err))
		return cached
	}
	if c.tokens != nil {
		if err := c.tokens.Save(ctx, AccessToken{Value: fresh, SavedAt: c.now().UTC()}); err != nil {
			c.log.Warn("failed to persist refreshed token", zap.Error(err))
		}
	}
	return fresh
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.cfg.RefreshToken},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}
	encoded := form.Encode()

	resp, err := c.send(ctx, c.http, c.cfg.OAuthURL, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OAuthURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !isSuccess(resp.StatusCode) {
		return "", statusError("token refresh", resp.StatusCode, body)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode token response with %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token response has no access_token")
	}
	return out.AccessToken, nil
}

// Publish uploads the image at path and creates a post with caption
func (c *Client) Publish(ctx context.Context, path, caption string) (mediaID, postID string, err error) {
	mediaID, err = c.UploadImage(ctx, path)
	if err != nil {
		return "", "", err
	}
	postID, err = c.CreatePost(ctx, mediaID, caption, c.cfg.Visibility)
	if err != nil {
		return mediaID, "", err
	}
	c.log.Info("linkedin post created", zap.String("media", mediaID), zap.String("post", postID))
	return mediaID, postID, nil
}
