package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// RouteGate redirects page navigations based on the caller's auth status.
// Anonymous visitors to protected pages go to the login page with a next
// parameter; signed-in visitors to login/register pages go home. It must run
// after Authenticate.
func RouteGate(cfg config.RouteGateConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			authenticated := IsAuthenticated(r.Context())

			switch {
			case !authenticated && matchesAnyPrefix(path, cfg.ProtectedPrefixes):
				target := cfg.LoginPath + "?" + url.Values{"next": {path}}.Encode()
				logRedirect(r, logg, "route_gate.login_required", target)
				http.Redirect(w, r, target, http.StatusFound)
				return
			case authenticated && matchesAnyPrefix(path, cfg.AuthOnlyPrefixes):
				logRedirect(r, logg, "route_gate.already_signed_in", cfg.HomePath)
				http.Redirect(w, r, cfg.HomePath, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// matchesAnyPrefix treats a prefix as a path segment boundary: /checkout matches
// /checkout and /checkout/review but not /checkouts.
func matchesAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
		if prefix == "" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func logRedirect(r *http.Request, logg *logger.Logger, msg, target string) {
	if logg == nil {
		return
	}
	ctx := logg.WithFields(r.Context(), map[string]any{"path": r.URL.Path, "redirect": target})
	logg.Debug(ctx, msg)
}
