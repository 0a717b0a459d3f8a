package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestSessionGeneratesKeyWhenMissing(t *testing.T) {
	var seen string
	handler := Session(false, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionKeyFromContext(r.Context())
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("expected generated uuid session, got %q", seen)
	}
	if resp.Header().Get(SessionHeader) != seen {
		t.Fatalf("expected header echo %q, got %q", seen, resp.Header().Get(SessionHeader))
	}
	cookies := resp.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookie || cookies[0].Value != seen {
		t.Fatalf("expected session cookie, got %+v", cookies)
	}
}

func TestSessionPrefersHeaderOverCookie(t *testing.T) {
	header := uuid.NewString()
	cookie := uuid.NewString()
	var seen string
	handler := Session(false, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionKeyFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(SessionHeader, header)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: cookie})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != header {
		t.Fatalf("expected header session %q, got %q", header, seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: cookie})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != cookie {
		t.Fatalf("expected cookie session %q, got %q", cookie, seen)
	}
}

func TestSessionRejectsMalformedKey(t *testing.T) {
	called := false
	handler := Session(false, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(SessionHeader, "not-a-uuid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if called {
		t.Fatal("handler must not run for a malformed session id")
	}
}
