package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestParseToken(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	valid, err := auth.IssueToken(42, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, _ := auth.IssueToken(42, -time.Minute)
	foreign, _ := NewAuthenticator(strings.Repeat("x", 32)).IssueToken(42, time.Hour)
	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "42"}).
		SignedString([]byte(testSecret))
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", valid, false},
		{"expired", expired, true},
		{"other secret", foreign, true},
		{"non numeric subject", badSubject, true},
		{"no expiry", noExpiry, true},
		{"alg none", unsigned, true},
		{"garbage", "not.a.token", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := auth.ParseToken(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && id != 42 {
				t.Errorf("user id = %d, want 42", id)
			}
		})
	}
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	var got int64
	h := NewAuthenticator("").Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserIDFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/budgets", nil))
	if got != DefaultUserID {
		t.Errorf("user id = %d, want %d", got, DefaultUserID)
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer nope"} {
		t.Run(header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/budgets", nil)
			if header != "" {
				r.Header.Set("Authorization", header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, r)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rr.Code)
			}
		})
	}
}

func TestIssueTokenDisabled(t *testing.T) {
	if _, err := NewAuthenticator("").IssueToken(1, time.Hour); err == nil {
		t.Error("expected error issuing without a secret")
	}
}
