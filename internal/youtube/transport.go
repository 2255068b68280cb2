package youtube

import (
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Caller identifies whose channel a request acts on.
type Caller struct {
	// Key scopes per-user cache entries. It must not be the raw token.
	Key    string
	Tokens oauth2.TokenSource
}

// limitedTransport blocks each request until the shared limiter admits it,
// keeping every user's traffic under one quota budget.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

func newLimitedTransport(base http.RoundTripper, rps float64, burst int) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if rps <= 0 {
		return base
	}
	if burst < 1 {
		burst = 1
	}
	return &limitedTransport{base: base, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// authorizedClient returns an HTTP client that sends the caller's token.
func authorizedClient(base http.RoundTripper, ts oauth2.TokenSource) *http.Client {
	return &http.Client{Transport: &oauth2.Transport{Source: ts, Base: base}}
}

// sessionClient is authorizedClient for upload sessions: a 308 there means
// "resume incomplete" and is never followed as a redirect.
func sessionClient(base http.RoundTripper, ts oauth2.TokenSource) *http.Client {
	c := authorizedClient(base, ts)
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return c
}
