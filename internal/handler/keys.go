package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/brightclass/keygate/internal/model"
	"github.com/brightclass/keygate/internal/service"
)

// KeyHandler exposes the credential lifecycle over HTTP. Every endpoint
// operates on the authenticated principal's own keys; the subject ID always
// comes from the request context, never from the body.
type KeyHandler struct {
	keys   *service.KeyService
	logger *slog.Logger
}

// NewKeyHandler creates a KeyHandler.
func NewKeyHandler(keys *service.KeyService, logger *slog.Logger) *KeyHandler {
	return &KeyHandler{keys: keys, logger: logger}
}

// createKeyRequest is the expected payload for Create.
type createKeyRequest struct {
	Label string      `json:"label"`
	Scope model.Scope `json:"scope"`
}

// issuedKeyResponse includes the plaintext secret, shown once only.
type issuedKeyResponse struct {
	Key     model.APIKeyView `json:"key"`
	Secret  string           `json:"secret"`
	Warning string           `json:"warning"`
}

const oneTimeWarning = "Save this secret now. It will not be shown again."

// Create issues a new API key for the authenticated subject.
func (h *KeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	var req createKeyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body: "+err.Error())
		return
	}
	if req.Scope == "" {
		req.Scope = model.ScopeRead
	}

	issued, err := h.keys.Issue(r.Context(), principal.SubjectID, req.Label, req.Scope)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, issuedKeyResponse{
		Key:     issued.Key,
		Secret:  issued.RawSecret,
		Warning: oneTimeWarning,
	})
}

// List returns the subject's keys, active and revoked, newest first.
func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	views, err := h.keys.List(r.Context(), principal.SubjectID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: views,
		Meta:     &model.ResponseMeta{Count: len(views)},
	})
}

// Revoke permanently disables one of the subject's keys.
func (h *KeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	keyID, ok := h.keyIDParam(w, r)
	if !ok {
		return
	}

	if err := h.keys.Revoke(r.Context(), principal.SubjectID, keyID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key revoked",
	})
}

// Regenerate revokes a key and issues a replacement with the same label and
// scope, returning the new one-time secret.
func (h *KeyHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	keyID, ok := h.keyIDParam(w, r)
	if !ok {
		return
	}

	issued, err := h.keys.Regenerate(r.Context(), principal.SubjectID, keyID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, issuedKeyResponse{
		Key:     issued.Key,
		Secret:  issued.RawSecret,
		Warning: oneTimeWarning,
	})
}

func (h *KeyHandler) keyIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "keyID")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_key_id", "Invalid key ID: "+idStr)
		return 0, false
	}
	return id, true
}
