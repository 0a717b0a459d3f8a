package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	pkgAuth "github.com/angelmondragon/storefront-checkout/pkg/auth"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type authStateReader interface {
	Get(ctx context.Context, sessionKey string) (session.AuthState, error)
}

// Authenticate resolves the caller. A bearer token wins when present and must
// verify; otherwise the auth state persisted for the session decides. Anonymous
// requests pass through unmarked.
func Authenticate(cfg config.JWTConfig, states authStateReader, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if token, ok := bearerToken(r); ok {
				claims, err := pkgAuth.ParseAccessToken(cfg, token)
				if err != nil {
					message := "invalid token"
					if errors.Is(err, pkgAuth.ErrTokenExpired) {
						message = "token expired"
					}
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, message))
					return
				}
				next.ServeHTTP(w, r.WithContext(withActor(ctx, logg, claims.UserID(), string(claims.Role))))
				return
			}

			if states != nil {
				if sessionKey := SessionKeyFromContext(ctx); sessionKey != "" {
					state, err := states.Get(ctx, sessionKey)
					if err != nil {
						responses.WriteError(ctx, logg, w, err)
						return
					}
					if state.IsAuthenticated && state.User != nil {
						ctx = withActor(ctx, logg, state.User.ID, string(state.User.Role))
					}
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous callers with 401 and tells the client where to sign in.
func RequireAuth(loginPath string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsAuthenticated(r.Context()) {
				err := pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required").
					WithDetails(map[string]string{"redirect": loginPath})
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", false
	}
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	return raw, raw != ""
}

func withActor(ctx context.Context, logg *logger.Logger, userID, role string) context.Context {
	ctx = WithUser(ctx, userID, role)
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"user_id":    userID,
			"actor_role": role,
		})
	}
	return ctx
}
