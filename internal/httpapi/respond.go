package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"sigepa.cl/internal/audit"
	"sigepa.cl/internal/auth"
	"sigepa.cl/internal/estate"
	"sigepa.cl/internal/obs"
	"sigepa.cl/internal/payment"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeData wraps v in the {"success": true, "data": ...} envelope.
func writeData(w http.ResponseWriter, code int, v any) {
	writeJSON(w, code, map[string]any{
		"success": true,
		"data":    v,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"success": false,
		"message": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// handleError renders any error a handler produced. Gate errors keep their
// kind's status and generic message; domain errors are mapped; everything
// else is logged and hidden behind a 500.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *auth.Error
	switch {
	case errors.As(err, &ae):
		if ae.Kind != auth.KindMalformedRequest {
			w.Header().Set("Cache-Control", "no-store")
		}
		writeError(w, r, ae.Status, ae.Message)
	case errors.Is(err, estate.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, estate.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, estate.ErrConflict), errors.Is(err, estate.ErrInvalidState):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, payment.ErrInvalidOrder):
		writeError(w, r, http.StatusBadRequest, "payment rejected by gateway")
	case errors.Is(err, payment.ErrGateway):
		obs.LoggerFrom(r.Context()).Error("payment gateway failure", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "payment gateway unavailable")
	default:
		obs.LoggerFrom(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads exactly one JSON object into dst. Unknown fields, trailing
// data and oversized bodies are malformed requests.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return auth.Malformed("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return auth.Malformed("request body is required")
		case errors.As(err, &tooLarge):
			return auth.Malformed("request body too large")
		case strings.HasPrefix(err.Error(), "json: unknown field"):
			return auth.Malformed(strings.TrimPrefix(err.Error(), "json: "))
		default:
			return auth.Malformed("invalid JSON body")
		}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return auth.Malformed("unexpected data after JSON body")
	}
	return nil
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, auth.Malformed("invalid id")
	}
	return id, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, auth.Malformed(key + " must be a non-negative integer")
	}
	return n, nil
}

// identity returns the identity Gate.Require stored for this request.
func identity(r *http.Request) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return auth.Identity{}, auth.ErrUnauthenticated
	}
	return id, nil
}

// authorizeLoaded applies the resource checks of req to the result of a
// lookup. A lookup that found nothing is denied exactly like a resource of
// another community.
func authorizeLoaded[T auth.Scoped](g *auth.Gate, id auth.Identity, req auth.Requirement, v T, err error) error {
	if errors.Is(err, estate.ErrNotFound) {
		return g.AssertAccess(id, req, nil)
	}
	if err != nil {
		return err
	}
	return g.AssertAccess(id, req, v)
}

// targetCommunity resolves the community a create request writes to. A body
// naming a community other than the caller's is denied before any write.
func (a *API) targetCommunity(id auth.Identity, requested int64) (int64, error) {
	if requested != 0 {
		if err := a.gate.AssertSameTenant(id, estate.Community{ID: requested}); err != nil {
			return 0, err
		}
	}
	return id.CommunityID, nil
}

func (a *API) audit(ctx context.Context, event string, fields ...zap.Field) {
	if err := audit.LogEvent(ctx, event, fields...); err != nil {
		obs.LoggerFrom(ctx).Warn("audit log failed", zap.String("event", event), zap.Error(err))
	}
}
