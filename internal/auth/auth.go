package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/triage-ai/palisade-moderation/internal/engine"
	"google.golang.org/grpc/metadata"
)

var (
	ErrMissingAPIKey   = errors.New("missing authorization header")
	ErrInvalidAPIKey   = errors.New("invalid API key format")
	ErrAuthUnavailable = errors.New("auth backend unavailable")
)

// Metadata keys read from incoming requests. HTTP headers are mapped onto
// the same keys.
const (
	AuthorizationKey = "authorization"
	ClientIDKey      = "x-client-id"
)

// ClientContext holds the authenticated client's configuration.
type ClientContext struct {
	ClientID string
	Mode     string // "enforce" or "shadow"
	Policy   *engine.PolicyConfig
}

// IsShadow reports whether verdicts are logged but not enforced.
func (c *ClientContext) IsShadow() bool { return c.Mode == "shadow" }

// Authenticator validates incoming requests and returns client context.
type Authenticator interface {
	Authenticate(ctx context.Context) (*ClientContext, error)
}

// ClientInvalidator is implemented by authenticators that cache clients.
// Admin changes to a client call it so the change applies on the next
// request instead of after the cache TTL.
type ClientInvalidator interface {
	InvalidateClient(clientID string)
}

// StaticAuthenticator is used when no database is configured.
// It validates that the API key starts with "tsk_" and nothing more.
type StaticAuthenticator struct{}

func NewStaticAuthenticator() *StaticAuthenticator {
	return &StaticAuthenticator{}
}

func (a *StaticAuthenticator) Authenticate(ctx context.Context) (*ClientContext, error) {
	apiKey, err := extractAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	// Callers may name themselves; otherwise the key prefix identifies them.
	clientID := firstValue(ctx, ClientIDKey)
	if clientID == "" {
		clientID = apiKey[:min(len(apiKey), 8)]
	}

	return &ClientContext{
		ClientID: clientID,
		Mode:     "enforce",
	}, nil
}

// extractAPIKey reads "Bearer tsk_..." from incoming gRPC metadata.
func extractAPIKey(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", ErrMissingAPIKey
	}

	authValues := md.Get(AuthorizationKey)
	if len(authValues) == 0 {
		return "", ErrMissingAPIKey
	}

	token := authValues[0]
	// RFC 6750: the "Bearer" scheme is case-insensitive.
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = token[7:]
	}
	token = strings.TrimSpace(token)

	if !strings.HasPrefix(token, "tsk_") || len(token) <= len("tsk_") {
		return "", ErrInvalidAPIKey
	}
	return token, nil
}

func firstValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

type contextKey struct{}

// WithClient returns a copy of ctx carrying the authenticated client.
func WithClient(ctx context.Context, c *ClientContext) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// ClientFromContext returns the client stored by WithClient, or nil.
func ClientFromContext(ctx context.Context) *ClientContext {
	c, _ := ctx.Value(contextKey{}).(*ClientContext)
	return c
}
