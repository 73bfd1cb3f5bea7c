package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"convtree/internal/auth"
	"convtree/internal/httputil"
	"convtree/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// staticVerifier accepts exactly one token
type staticVerifier struct {
	token   string
	subject string
}

func (v staticVerifier) VerifyToken(token string) (*auth.Claims, error) {
	if token != v.token {
		return nil, errors.New("bad token")
	}
	return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: v.subject}}, nil
}

func (staticVerifier) Close() error { return nil }

// echoOwner writes the resolved owner id
var echoOwner = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, httputil.GetOwnerID(r))
})

func TestAuth(t *testing.T) {
	verifier := staticVerifier{token: "good", subject: "user-42"}

	tests := []struct {
		name      string
		verifier  auth.Verifier
		method    string
		target    string
		header    string
		wantCode  int
		wantOwner string
	}{
		{"dev mode", nil, http.MethodGet, "/api/tree", "", http.StatusOK, "dev-user"},
		{"valid bearer", verifier, http.MethodGet, "/api/tree", "Bearer good", http.StatusOK, "user-42"},
		{"query token", verifier, http.MethodGet, "/api/events?access_token=good", "", http.StatusOK, "user-42"},
		{"missing token", verifier, http.MethodGet, "/api/tree", "", http.StatusUnauthorized, ""},
		{"wrong scheme", verifier, http.MethodGet, "/api/tree", "Basic good", http.StatusUnauthorized, ""},
		{"invalid token", verifier, http.MethodGet, "/api/tree", "Bearer bad", http.StatusUnauthorized, ""},
		{"public path", verifier, http.MethodGet, "/health", "", http.StatusOK, ""},
		{"preflight", verifier, http.MethodOptions, "/api/tree", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Auth(tt.verifier, "dev-user", testLogger(), "/health")(echoOwner)

			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK && rec.Body.String() != tt.wantOwner {
				t.Errorf("owner = %q, want %q", rec.Body.String(), tt.wantOwner)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestMetricsLabelsByRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := Metrics(mux)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "GET /api/conversations/{id}", "404")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/conversations/"+id, nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("counter delta = %v, want 2", got)
	}
}
