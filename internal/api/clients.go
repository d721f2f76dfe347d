package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/triage-ai/palisade-moderation/internal/auth"
	"github.com/triage-ai/palisade-moderation/internal/engine"
	"github.com/triage-ai/palisade-moderation/internal/store"
	"go.uber.org/zap"
)

func (d *Dependencies) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Name == "" || len(req.Name) > 255 {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name must be 1-255 characters"})
		return
	}

	client, plainKey, err := d.Store.CreateClient(r.Context(), req.Name, req.Mode)
	if errors.Is(err, store.ErrInvalidMode) {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	}
	if err != nil {
		d.Logger.Error("failed to create client", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to create client"})
		return
	}

	writeJSON(w, http.StatusCreated, CreateClientResp{
		ID:           client.ID,
		Name:         client.Name,
		APIKey:       plainKey,
		APIKeyPrefix: client.APIKeyPrefix,
		Mode:         client.Mode,
		CreatedAt:    client.CreatedAt,
	})
}

// handleUpdatePolicy replaces a client's policy and evicts the client from
// the auth cache so the next request runs under the new policy.
func (d *Dependencies) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("client_id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Client not found"})
		return
	}

	var policy engine.PolicyConfig
	if err := readJSON(r, &policy); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	for tag := range policy.Categories {
		if _, ok := engine.ParseCategory(tag); !ok {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "unknown category: " + tag})
			return
		}
	}

	raw, err := json.Marshal(policy)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to encode policy"})
		return
	}

	err = d.Store.UpdateClientPolicy(r.Context(), id, raw)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Client not found"})
		return
	}
	if err != nil {
		d.Logger.Error("failed to update policy", zap.String("client_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to update policy"})
		return
	}

	if inv, ok := d.Auth.(auth.ClientInvalidator); ok {
		inv.InvalidateClient(id)
	}
	writeJSON(w, http.StatusOK, policy)
}
