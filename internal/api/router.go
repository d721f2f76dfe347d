package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/triage-ai/palisade-moderation/internal/auth"
	"github.com/triage-ai/palisade-moderation/internal/imagecheck"
	"github.com/triage-ai/palisade-moderation/internal/metrics"
	"github.com/triage-ai/palisade-moderation/internal/service"
	"github.com/triage-ai/palisade-moderation/internal/store"
	"go.uber.org/zap"
)

// ClientStore is the subset of *store.Store used by the admin endpoints.
type ClientStore interface {
	CreateClient(ctx context.Context, name, mode string) (*store.Client, string, error)
	UpdateClientPolicy(ctx context.Context, id string, policy json.RawMessage) error
}

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Service    *service.Service
	Auth       auth.Authenticator
	Images     *imagecheck.Validator
	Metrics    *metrics.Metrics
	Store      ClientStore // nil if Postgres unavailable
	AdminToken string      // admin routes are disabled when empty
	Logger     *zap.Logger
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Moderation (auth required via Bearer tsk_ token)
	mux.HandleFunc("POST /v1/moderate", deps.authMiddleware(deps.handleModerate))
	mux.HandleFunc("POST /v1/moderate/batch", deps.authMiddleware(deps.handleModerateBatch))
	mux.HandleFunc("POST /v1/profanity", deps.authMiddleware(deps.handleProfanity))
	mux.HandleFunc("POST /v1/features", deps.authMiddleware(deps.handleFeatures))
	mux.HandleFunc("POST /v1/images/validate", deps.authMiddleware(deps.handleValidateImage))
	mux.HandleFunc("GET /v1/categories", deps.handleCategories)

	// The lexicon is shared by every client, so only the admin may extend it.
	if deps.AdminToken != "" {
		mux.HandleFunc("POST /v1/lexicon/words", deps.adminMiddleware(deps.handleAddWords))
	}

	// Client administration (admin token, Postgres only)
	if deps.Store != nil && deps.AdminToken != "" {
		mux.HandleFunc("POST /admin/clients", deps.adminMiddleware(deps.handleCreateClient))
		mux.HandleFunc("PUT /admin/clients/{client_id}/policy", deps.adminMiddleware(deps.handleUpdatePolicy))
	}

	mux.Handle("GET /metrics", deps.Metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
