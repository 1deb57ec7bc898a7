package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quillpress/apiserver/internal/auth"
)

func TestRequireAuth(t *testing.T) {
	tokens := auth.NewTokenService(testSecret, time.Hour)
	valid, err := tokens.Issue(7)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	foreign, err := auth.NewTokenService("other-secret", time.Hour).Issue(7)
	if err != nil {
		t.Fatalf("issue foreign token: %v", err)
	}

	var seen int
	handler := RequireAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, want: http.StatusForbidden},
		{name: "garbage token", header: "Bearer not-a-jwt", want: http.StatusForbidden},
		{name: "foreign signature", header: "Bearer " + foreign, want: http.StatusForbidden},
		{name: "valid", header: "Bearer " + valid, want: http.StatusNoContent},
		{name: "lowercase scheme", header: "bearer " + valid, want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = 0
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rec.Code, rec.Body.String())
			}
			if tt.want == http.StatusNoContent && seen != 7 {
				t.Errorf("expected user 7 in context, got %d", seen)
			}
			if tt.want != http.StatusNoContent && seen != 0 {
				t.Error("handler must not run for rejected requests")
			}
		})
	}
}
