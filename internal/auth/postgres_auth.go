package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/triage-ai/palisade-moderation/internal/engine"
	"github.com/triage-ai/palisade-moderation/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ClientStore abstracts DB queries for testability. *store.Store satisfies it.
type ClientStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*store.Client, error)
}

// PostgresAuthenticator validates API keys against the clients table.
// Uses AuthCache with stale-while-revalidate to avoid DB + bcrypt on the hot path.
// Auth failures always return an error; nothing is moderated without valid auth.
type PostgresAuthenticator struct {
	store  ClientStore
	cache  *AuthCache
	logger *zap.Logger
}

// PostgresAuthConfig configures the PostgresAuthenticator.
type PostgresAuthConfig struct {
	Store    ClientStore
	CacheTTL time.Duration // Default: 30s
	Logger   *zap.Logger
}

// NewPostgresAuthenticator creates a new authenticator backed by PostgreSQL.
func NewPostgresAuthenticator(cfg PostgresAuthConfig) *PostgresAuthenticator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:  cfg.Store,
		cache:  NewAuthCache(ttl),
		logger: cfg.Logger,
	}
}

// Authenticate validates the API key against the database.
//
// Flow:
//  1. Extract Bearer tsk_... from gRPC metadata
//  2. Cache lookup (stale-while-revalidate):
//     - Fresh hit: return immediately
//     - Stale hit: return stale client, spawn background refresh
//     - Miss: do full DB + bcrypt lookup synchronously
//  3. On DB error: ErrAuthUnavailable
func (a *PostgresAuthenticator) Authenticate(ctx context.Context) (*ClientContext, error) {
	apiKey, err := extractAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	result := a.cache.Get(apiKey)
	if result.Hit {
		if result.NeedsRefresh {
			go a.backgroundRefresh(apiKey)
		}
		return result.Client, nil
	}

	client, err := a.lookupAndVerify(ctx, apiKey)
	if err != nil {
		return nil, a.handleLookupError(err)
	}

	a.cache.Set(apiKey, client)
	return client, nil
}

// backgroundRefresh performs the DB + bcrypt lookup off the request path.
// Errors are logged but don't affect the caller (they already got the stale value).
func (a *PostgresAuthenticator) backgroundRefresh(apiKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := a.lookupAndVerify(ctx, apiKey)
	if err != nil {
		a.logger.Warn("background cache refresh failed",
			zap.Error(err),
		)
		// Drop the entry so the next request re-verifies synchronously.
		a.cache.Delete(apiKey)
		return
	}

	a.cache.Set(apiKey, client)
}

// InvalidateClient drops every cached key of clientID.
func (a *PostgresAuthenticator) InvalidateClient(clientID string) {
	n := a.cache.InvalidateClient(clientID)
	a.logger.Info("auth cache invalidated",
		zap.String("client_id", clientID),
		zap.Int("keys", n),
	)
}

// lookupAndVerify does the DB prefix lookup, bcrypt verification and policy parsing.
func (a *PostgresAuthenticator) lookupAndVerify(ctx context.Context, apiKey string) (*ClientContext, error) {
	// api_key_prefix is the first 8 chars (e.g. "tsk_abcd")
	if len(apiKey) < 8 {
		return nil, ErrInvalidAPIKey
	}

	row, err := a.store.LookupByPrefix(ctx, apiKey[:8])
	if err != nil {
		return nil, fmt.Errorf("lookupAndVerify: %w", err)
	}
	if row == nil {
		return nil, ErrInvalidAPIKey
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.APIKeyHash), []byte(apiKey)); err != nil {
		return nil, ErrInvalidAPIKey
	}

	policy, err := parsePolicy(row.Policy)
	if err != nil {
		a.logger.Warn("failed to parse client policy, using defaults",
			zap.String("client_id", row.ID),
			zap.Error(err),
		)
	}

	return &ClientContext{
		ClientID: row.ID,
		Mode:     row.Mode,
		Policy:   policy,
	}, nil
}

func (a *PostgresAuthenticator) handleLookupError(lookupErr error) error {
	if errors.Is(lookupErr, ErrInvalidAPIKey) {
		return ErrInvalidAPIKey
	}

	a.logger.Warn("auth DB unreachable",
		zap.Error(lookupErr),
	)
	return fmt.Errorf("%w: %v", ErrAuthUnavailable, lookupErr)
}

// parsePolicy decodes the policy JSONB. An empty document yields a nil
// policy (server defaults).
func parsePolicy(raw json.RawMessage) (*engine.PolicyConfig, error) {
	if len(raw) == 0 || string(raw) == "{}" || string(raw) == "null" {
		return nil, nil
	}
	var policy engine.PolicyConfig
	if err := json.Unmarshal(raw, &policy); err != nil {
		return nil, fmt.Errorf("parsePolicy: %w", err)
	}
	if len(policy.Categories) == 0 {
		return nil, nil
	}
	return &policy, nil
}
