package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHeaderModeWithoutSecret(t *testing.T) {
	a := New("")
	r := httptest.NewRequest(http.MethodGet, "/quiz", nil)
	if _, err := a.Authenticate(r); err == nil {
		t.Fatalf("expected missing header to be rejected")
	}
	r.Header.Set(UserHeader, "u1")
	userID, err := a.Authenticate(r)
	if err != nil || userID != "u1" {
		t.Fatalf("expected u1, got %q (%v)", userID, err)
	}
}

func TestBearerTokenRoundTrip(t *testing.T) {
	a := New("secret")
	token, err := a.Issue("u42", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/quiz", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	r.Header.Set(UserHeader, "spoofed")
	userID, err := a.Authenticate(r)
	if err != nil || userID != "u42" {
		t.Fatalf("expected u42, got %q (%v)", userID, err)
	}

	ws := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	if userID, err := a.Authenticate(ws); err != nil || userID != "u42" {
		t.Fatalf("expected query token to authenticate, got %q (%v)", userID, err)
	}
}

func TestRejectsForeignAndExpiredTokens(t *testing.T) {
	a := New("secret")
	foreign, _ := New("other").Issue("u1", time.Minute)
	if _, err := a.Parse(foreign); err == nil {
		t.Fatalf("expected token signed with another key to be rejected")
	}
	expired, _ := a.Issue("u1", -time.Minute)
	if _, err := a.Parse(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestMiddlewareStoresUserID(t *testing.T) {
	a := New("")
	var got string
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(UserHeader, "u7")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK || got != "u7" {
		t.Fatalf("expected pass-through with u7, got %d %q", rec.Code, got)
	}
}
