// internal/api/handler/respond.go
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"finflow-commitments/internal/api/types"
	"finflow-commitments/internal/util"
)

// DefaultTimeout bounds every request, including the wallet gateway round trip.
const DefaultTimeout = 30 * time.Second

type ownerKey struct{}

// WithOwner stores the authenticated owner id in ctx.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext returns the authenticated owner id, if any.
func OwnerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey{}).(string)
	return id, ok && id != ""
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind util.Kind) int {
	switch kind {
	case util.KindValidation:
		return http.StatusBadRequest
	case util.KindUnauthenticated:
		return http.StatusUnauthorized
	case util.KindAuthentication:
		return http.StatusForbidden
	case util.KindNotFound:
		return http.StatusNotFound
	case util.KindConflict:
		return http.StatusConflict
	case util.KindInsufficientBalance:
		return http.StatusPaymentRequired // 402 Payment Required
	case util.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithJSON sends payload as a JSON response.
func RespondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// RespondWithError sends the error body for err. Unclassified errors are logged and hidden.
func RespondWithError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := util.KindOf(err)
	body := types.ErrorResponse{Error: err.Error(), Code: kind.String()}

	switch kind {
	case util.KindUnknown:
		logger.Error("Unhandled service error", "error", err)
		body.Error = "Internal server error"
	case util.KindTransient:
		logger.Warn("Request failed with unknown outcome", "error", err)
	case util.KindConflict:
		body.ExistingID, _ = util.ExistingID(err)
	}

	RespondWithJSON(w, logger, StatusFor(kind), body)
}

// decodeJSON decodes the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return util.ErrInvalidInput
	}
	return nil
}

// requireOwner extracts the owner or writes a 401.
func requireOwner(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (string, bool) {
	owner, ok := OwnerFromContext(r.Context())
	if !ok {
		RespondWithError(w, logger, util.ErrUnauthenticated)
		return "", false
	}
	return owner, true
}
