package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/brightclass/keygate/internal/model"
	"github.com/brightclass/keygate/internal/server/middleware"
	"github.com/brightclass/keygate/internal/service"
)

// requirePrincipal returns the authenticated principal, or writes a 401 and
// returns nil. The gate admits anonymous requests on routes marked public in
// configuration, so handlers that operate on a subject's own resources must
// not assume a principal is present.
func requirePrincipal(w http.ResponseWriter, r *http.Request) *model.Principal {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "auth_required",
			"Authentication required. Provide a session token or API key.")
	}
	return principal
}

// writeJSON serializes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, model.ErrorResponse{
		Error: model.ErrorDetail{Status: status, Code: code, Message: message},
	})
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeServiceError translates a taxonomy error into its HTTP status code.
// Internal failures are logged with full detail server-side and surfaced to
// the client as a generic 500 with no diagnostic leakage.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		logger.Error("unclassified handler error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	switch svcErr.Kind {
	case service.KindValidation:
		writeError(w, http.StatusBadRequest, svcErr.Code, svcErr.Message)
	case service.KindAuthentication:
		writeError(w, http.StatusUnauthorized, svcErr.Code, svcErr.Message)
	case service.KindAuthorization:
		writeError(w, http.StatusForbidden, svcErr.Code, svcErr.Message)
	case service.KindQuota:
		writeError(w, http.StatusTooManyRequests, svcErr.Code, svcErr.Message)
	case service.KindNotFound:
		writeError(w, http.StatusNotFound, svcErr.Code, svcErr.Message)
	default:
		logger.Error("internal service error", "code", svcErr.Code, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}
