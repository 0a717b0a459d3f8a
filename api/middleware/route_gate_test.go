package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
)

var gateCfg = config.RouteGateConfig{
	ProtectedPrefixes: []string{"/checkout", "/account", "/orders", "/vendor", "/admin"},
	AuthOnlyPrefixes:  []string{"/login", "/register"},
	LoginPath:         "/login",
	HomePath:          "/",
}

func TestRouteGate(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		authenticated bool
		wantStatus    int
		wantLocation  string
	}{
		{"anonymous checkout", "/checkout", false, http.StatusFound, "/login?next=%2Fcheckout"},
		{"anonymous nested", "/account/settings", false, http.StatusFound, "/login?next=%2Faccount%2Fsettings"},
		{"anonymous public", "/products/1", false, http.StatusOK, ""},
		{"segment boundary", "/checkouts", false, http.StatusOK, ""},
		{"anonymous login", "/login", false, http.StatusOK, ""},
		{"signed in login", "/login", true, http.StatusFound, "/"},
		{"signed in register", "/register", true, http.StatusFound, "/"},
		{"signed in checkout", "/checkout", true, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RouteGate(gateCfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authenticated {
				req = req.WithContext(WithUser(req.Context(), "user-1", "buyer"))
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)

			if resp.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.Code)
			}
			if loc := resp.Header().Get("Location"); loc != tt.wantLocation {
				t.Fatalf("expected location %q, got %q", tt.wantLocation, loc)
			}
		})
	}
}
