package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brightclass/keygate/internal/config"
	"github.com/brightclass/keygate/internal/model"
)

// SubjectHandler exposes subject billing profiles: the tier and credit
// balance the gate consults. Reads are open to the profile's owner; writes
// are restricted to the configured billing administrator subjects, so an
// ordinary subject cannot rewrite its own tier or credits.
type SubjectHandler struct {
	store  *config.Store
	admins map[string]struct{}
	logger *slog.Logger
}

// NewSubjectHandler creates a SubjectHandler. adminSubjects lists the subject
// IDs allowed to write profiles; with none configured, the write endpoint
// denies everything.
func NewSubjectHandler(store *config.Store, adminSubjects []string, logger *slog.Logger) *SubjectHandler {
	admins := make(map[string]struct{}, len(adminSubjects))
	for _, id := range adminSubjects {
		admins[id] = struct{}{}
	}
	return &SubjectHandler{store: store, admins: admins, logger: logger}
}

func (h *SubjectHandler) isAdmin(subjectID string) bool {
	_, ok := h.admins[subjectID]
	return ok
}

// Me returns the principal resolved for the current request.
func (h *SubjectHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}
	writeJSON(w, http.StatusOK, principal)
}

// Get returns a subject's profile, applying defaults when no explicit
// profile exists. Admin subjects may read any profile.
func (h *SubjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}
	if principal.SubjectID != subjectID && !h.isAdmin(principal.SubjectID) {
		writeError(w, http.StatusForbidden, "not_profile_owner", "Cannot read another subject's profile")
		return
	}

	profile, err := h.store.GetSubjectProfile(r.Context(), subjectID)
	if err != nil {
		h.logger.Error("load subject profile", "subject_id", subjectID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// updateProfileRequest is the expected payload for Update.
type updateProfileRequest struct {
	Tier    model.Tier `json:"tier"`
	Credits int64      `json:"credits"`
}

// Update upserts a subject's tier and credit balance. Only billing
// administrators may call it; tier and credits feed the authorization gate,
// so a self-service write here would let any subject lift its own limits.
func (h *SubjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}
	if !h.isAdmin(principal.SubjectID) {
		h.logger.Warn("rejected profile write", "subject_id", principal.SubjectID, "target", subjectID)
		writeError(w, http.StatusForbidden, "not_billing_admin", "Profile writes are restricted to billing administrators")
		return
	}

	var req updateProfileRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body: "+err.Error())
		return
	}
	if !req.Tier.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_tier", "Unknown subscription tier: "+string(req.Tier))
		return
	}
	if req.Credits < 0 {
		writeError(w, http.StatusBadRequest, "invalid_credits", "Credits must not be negative")
		return
	}

	profile := &model.SubjectProfile{SubjectID: subjectID, Tier: req.Tier, Credits: req.Credits}
	if err := h.store.SetSubjectProfile(r.Context(), profile); err != nil {
		h.logger.Error("save subject profile", "subject_id", subjectID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
