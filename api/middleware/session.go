package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const (
	SessionHeader = "X-Session-Id"
	SessionCookie = "sf_session"

	sessionCookieMaxAge = 30 * 24 * time.Hour
)

// Session resolves the storefront session from the X-Session-Id header or the
// sf_session cookie. Requests without one get a fresh UUIDv7 that is echoed
// back in both places so the client can keep using it.
func Session(secureCookie bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(SessionHeader))
			if raw == "" {
				if c, err := r.Cookie(SessionCookie); err == nil {
					raw = strings.TrimSpace(c.Value)
				}
			}

			var sessionKey string
			if raw == "" {
				id, err := uuid.NewV7()
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate session id"))
					return
				}
				sessionKey = id.String()
			} else {
				id, err := uuid.Parse(raw)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid session id").
						WithDetails(map[string]string{SessionHeader: "must be a UUID"}))
					return
				}
				sessionKey = id.String()
			}

			w.Header().Set(SessionHeader, sessionKey)
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sessionKey,
				Path:     "/",
				MaxAge:   int(sessionCookieMaxAge.Seconds()),
				HttpOnly: true,
				Secure:   secureCookie,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := WithSessionKey(r.Context(), sessionKey)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionKey)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
