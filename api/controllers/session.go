package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// SessionService is the auth-state surface used by the session endpoints.
type SessionService interface {
	Get(ctx context.Context, sessionKey string) (session.AuthState, error)
	SignIn(ctx context.Context, sessionKey, token string) (session.AuthState, error)
	SignOut(ctx context.Context, sessionKey string) error
}

type signInRequest struct {
	Token string `json:"token" validate:"required"`
}

// sessionResponse never echoes the token back.
type sessionResponse struct {
	SessionID       string        `json:"sessionId"`
	User            *session.User `json:"user"`
	IsAuthenticated bool          `json:"isAuthenticated"`
}

func newSessionResponse(sessionKey string, state session.AuthState) sessionResponse {
	return sessionResponse{
		SessionID:       sessionKey,
		User:            state.User,
		IsAuthenticated: state.IsAuthenticated,
	}
}

func SessionGet(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionKey := middleware.SessionKeyFromContext(r.Context())
		state, err := svc.Get(r.Context(), sessionKey)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(sessionKey, state))
	}
}

// SessionSignIn stores the access token issued by the storefront API for this session.
func SessionSignIn(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload signInRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionKey := middleware.SessionKeyFromContext(r.Context())
		state, err := svc.SignIn(r.Context(), sessionKey, payload.Token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(sessionKey, state))
	}
}

func SessionSignOut(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.SignOut(r.Context(), middleware.SessionKeyFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
