package httpapi

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sigepa.cl/internal/auth"
	"sigepa.cl/internal/estate"
	"sigepa.cl/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      estate.User `json:"user"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	u, err := a.estate.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, estate.ErrInvalidCredentials) {
			obs.LoggerFrom(r.Context()).Warn("login failed", zap.String("remote", clientIP(r)))
		}
		handleError(w, r, err)
		return
	}
	token, exp, err := a.tokens.Issue(u.Identity())
	if err != nil {
		handleError(w, r, err)
		return
	}
	ctx := auth.ContextWithIdentity(r.Context(), u.Identity())
	a.audit(ctx, "auth.login")

	w.Header().Set("Cache-Control", "no-store")
	writeData(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, User: u})
}

// me serves the caller's own account for both /api/auth/me and GET
// /api/profile.
func (a *API) me(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	u, err := a.estate.User(r.Context(), id.UserID)
	if err := authorizeLoaded(a.gate, id, auth.Self, u, err); err != nil {
		handleError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, u)
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req estate.ProfileUpdate
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	current, err := a.estate.User(r.Context(), id.UserID)
	if err := authorizeLoaded(a.gate, id, auth.Self, current, err); err != nil {
		handleError(w, r, err)
		return
	}
	u, err := a.estate.UpdateProfile(r.Context(), current.ID, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	a.audit(r.Context(), "profile.updated", zap.Bool("password_changed", req.Password != ""))
	writeData(w, http.StatusOK, u)
}
