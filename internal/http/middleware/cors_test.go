package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantOrigin  string
		wantHandler bool
	}{
		{name: "listed origin", allowed: []string{"https://app.example"}, method: http.MethodPost, origin: "https://app.example", wantStatus: http.StatusOK, wantOrigin: "https://app.example", wantHandler: true},
		{name: "trailing slash in config", allowed: []string{"https://app.example/"}, method: http.MethodGet, origin: "https://app.example", wantStatus: http.StatusOK, wantOrigin: "https://app.example", wantHandler: true},
		{name: "unknown origin", allowed: []string{"https://app.example"}, method: http.MethodGet, origin: "https://evil.example", wantStatus: http.StatusOK, wantHandler: true},
		{name: "wildcard", allowed: []string{" ", "*"}, method: http.MethodGet, origin: "https://random.example", wantStatus: http.StatusOK, wantOrigin: "https://random.example", wantHandler: true},
		{name: "no origin", allowed: []string{"*"}, method: http.MethodGet, wantStatus: http.StatusOK, wantHandler: true},
		{name: "preflight", allowed: []string{"https://app.example"}, method: http.MethodOptions, origin: "https://app.example", preflight: true, wantStatus: http.StatusNoContent, wantOrigin: "https://app.example"},
		{name: "preflight unknown origin", allowed: []string{"https://app.example"}, method: http.MethodOptions, origin: "https://evil.example", preflight: true, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := CORS(tt.allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/v1/analyses", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if called != tt.wantHandler {
				t.Fatalf("handler called = %v, want %v", called, tt.wantHandler)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("expected allow origin %q, got %q", tt.wantOrigin, got)
			}
			if tt.wantOrigin != "" && rec.Header().Get("Access-Control-Allow-Methods") != corsAllowedMethods {
				t.Fatalf("expected allow methods header")
			}
		})
	}
}
