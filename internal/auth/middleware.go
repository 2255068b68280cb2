package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yt-dashboard/internal/youtube"
	"golang.org/x/oauth2"
)

const identityKey = "auth.identity"

// Identity is the resolved caller of a request.
type Identity struct {
	// UserID is the user id named by the request. With a bearer token it is
	// not verified and only used for logging.
	UserID string
	// Subject scopes per-user state: the token fingerprint for bearer
	// callers, the exchanged user id otherwise.
	Subject string
	Caller  youtube.Caller
}

// Resolver turns request credentials into an Identity.
type Resolver struct {
	broker TokenBroker
	logger zerolog.Logger
}

// NewResolver creates a Resolver. A nil broker limits callers to bearer tokens.
func NewResolver(broker TokenBroker, logger zerolog.Logger) *Resolver {
	return &Resolver{broker: broker, logger: logger}
}

// UserID returns the user id named by the X-User-ID header or the userId
// query parameter.
func UserID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("userId"))
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Resolve prefers a bearer token and falls back to exchanging the user id.
func (r *Resolver) Resolve(req *http.Request) (Identity, error) {
	return r.ResolveFor(req, UserID(req))
}

// ResolveFor is Resolve with the user id taken from elsewhere, such as a
// form field.
func (r *Resolver) ResolveFor(req *http.Request, userID string) (Identity, error) {
	if token := bearerToken(req); token != "" {
		subject := tokenKey(token)
		return Identity{
			UserID:  userID,
			Subject: subject,
			Caller: youtube.Caller{
				Key:    "user:" + subject,
				Tokens: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			},
		}, nil
	}

	if userID == "" || r.broker == nil {
		return Identity{}, ErrUnauthenticated
	}
	tok, err := r.broker.AccessToken(req.Context(), userID)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		UserID:  userID,
		Subject: userID,
		Caller:  youtube.Caller{Key: "user:" + userID, Tokens: oauth2.StaticTokenSource(tok)},
	}, nil
}

// SubjectFor returns the Subject a request would resolve to without
// exchanging the user id. Empty means the request names no one.
func SubjectFor(req *http.Request, userID string) string {
	if token := bearerToken(req); token != "" {
		return tokenKey(token)
	}
	return userID
}

// tokenKey scopes cache entries for bare-token callers without keeping the
// token itself.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "t-" + hex.EncodeToString(sum[:8])
}

// Middleware resolves the caller and stores it on the context. Failures are
// handed to deny, which must write the response.
func Middleware(r *Resolver, deny func(*gin.Context, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := r.Resolve(c.Request)
		if err != nil {
			r.logger.Warn().Err(err).Str("path", c.FullPath()).Msg("request not authenticated")
			deny(c, err)
			c.Abort()
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// FromContext returns the Identity stored by Middleware.
func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
