// Package auth resolves the Google access token a request acts with.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yt-dashboard/internal/cache"
	"golang.org/x/oauth2"
)

var (
	// ErrUnauthenticated means the request carried neither a token nor a user id.
	ErrUnauthenticated = errors.New("User not authenticated")
	// ErrNoToken means the identity provider holds no Google token for the user.
	ErrNoToken = errors.New("No OAuth access token found for the user")
)

// tokenCacheTTL caps how long an exchanged token is reused.
const tokenCacheTTL = time.Minute

// TokenBroker exchanges a user id for the user's Google access token.
type TokenBroker interface {
	AccessToken(ctx context.Context, userID string) (*oauth2.Token, error)
}

// IdentityConfig configures an IdentityClient.
type IdentityConfig struct {
	APIURL    string
	SecretKey string
	Provider  string
	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
}

// IdentityClient reads OAuth access tokens from the identity provider's
// backend API.
type IdentityClient struct {
	baseURL   string
	secretKey string
	provider  string
	http      *http.Client
	tokens    *cache.Cache
	now       func() time.Time
	logger    zerolog.Logger
}

// NewIdentityClient creates an IdentityClient caching tokens in store.
func NewIdentityClient(cfg IdentityConfig, store cache.Store, logger zerolog.Logger) *IdentityClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "google"
	}
	return &IdentityClient{
		baseURL:   strings.TrimRight(cfg.APIURL, "/"),
		secretKey: cfg.SecretKey,
		provider:  provider,
		http:      httpClient,
		tokens:    cache.New("oauth-token", store, tokenCacheTTL),
		now:       time.Now,
		logger:    logger,
	}
}

type oauthAccessToken struct {
	Token     string   `json:"token"`
	Scopes    []string `json:"scopes"`
	ExpiresAt int64    `json:"expires_at"`
}

// AccessToken returns the first token the provider lists for userID.
func (c *IdentityClient) AccessToken(ctx context.Context, userID string) (*oauth2.Token, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	var cached oauth2.Token
	if hit, err := c.tokens.Get(ctx, userID, &cached); err != nil {
		c.logger.Warn().Err(err).Msg("token cache read failed")
	} else if hit && cached.AccessToken != "" {
		return &cached, nil
	}

	tok, err := c.fetch(ctx, userID)
	if err != nil {
		return nil, err
	}

	ttl := tokenCacheTTL
	if !tok.Expiry.IsZero() {
		ttl = min(ttl, tok.Expiry.Sub(c.now()))
	}
	if ttl > 0 {
		if err := c.tokens.SetTTL(ctx, userID, tok, ttl); err != nil {
			c.logger.Warn().Err(err).Msg("token cache write failed")
		}
	}
	return tok, nil
}

func (c *IdentityClient) fetch(ctx context.Context, userID string) (*oauth2.Token, error) {
	endpoint := fmt.Sprintf("%s/v1/users/%s/oauth_access_tokens/%s",
		c.baseURL, url.PathEscape(userID), url.PathEscape(c.provider))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoToken
	default:
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var tokens []oauthAccessToken
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("failed to decode identity response: %w", err)
	}
	if len(tokens) == 0 || tokens[0].Token == "" {
		return nil, ErrNoToken
	}

	t := tokens[0]
	c.logger.Debug().Str("user_id", userID).Strs("scopes", t.Scopes).Msg("oauth token exchanged")
	return &oauth2.Token{
		AccessToken: t.Token,
		TokenType:   "Bearer",
		Expiry:      expiry(t.ExpiresAt),
	}, nil
}

// expiry accepts Unix seconds or milliseconds; zero means unknown.
func expiry(v int64) time.Time {
	switch {
	case v <= 0:
		return time.Time{}
	case v > 1e12:
		return time.UnixMilli(v)
	default:
		return time.Unix(v, 0)
	}
}
