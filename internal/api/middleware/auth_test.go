package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	const apiKey = "correct-key"

	tests := []struct {
		name    string
		target  string
		headers map[string]string
		want    int
	}{
		{"x-api-key header", "/api/v1/runs", map[string]string{"X-API-Key": apiKey}, http.StatusOK},
		{"bearer token", "/api/v1/runs", map[string]string{"Authorization": "Bearer " + apiKey}, http.StatusOK},
		{"key param", "/api/v1/runs?key=" + apiKey, nil, http.StatusOK},
		{"api_key param", "/api/v1/runs?api_key=" + apiKey, nil, http.StatusOK},
		{"header beats query", "/api/v1/runs?key=wrong", map[string]string{"X-API-Key": apiKey}, http.StatusOK},
		{"bearer beats query", "/api/v1/runs?key=wrong", map[string]string{"Authorization": "Bearer " + apiKey}, http.StatusOK},
		{"missing", "/api/v1/runs", nil, http.StatusUnauthorized},
		{"wrong key", "/api/v1/runs", map[string]string{"X-API-Key": "wrong"}, http.StatusUnauthorized},
		{"short bearer", "/api/v1/runs", map[string]string{"Authorization": "Bear"}, http.StatusUnauthorized},
		{"empty bearer", "/api/v1/runs", map[string]string{"Authorization": "Bearer "}, http.StatusUnauthorized},
		{"lowercase bearer", "/api/v1/runs", map[string]string{"Authorization": "bearer " + apiKey}, http.StatusUnauthorized},
		{"uppercase bearer", "/api/v1/runs", map[string]string{"Authorization": "BEARER " + apiKey}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := APIKeyAuth(apiKey)(okHandler())

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized {
				if ct := w.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", ct)
				}
			}
		})
	}
}

func TestAPIKeyAuth_EmptyConfiguredKey(t *testing.T) {
	handler := APIKeyAuth("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestCORS(t *testing.T) {
	handler := CORS(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	tests := []struct {
		header string
		want   string
	}{
		{"Access-Control-Allow-Origin", "*"},
		{"Access-Control-Allow-Methods", "GET, POST, OPTIONS"},
		{"Access-Control-Allow-Headers", "Content-Type, X-API-Key, Authorization"},
		{"Access-Control-Max-Age", "86400"},
	}

	for _, tt := range tests {
		if got := w.Header().Get(tt.header); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/runs", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if called {
		t.Error("next handler should not be called for OPTIONS request")
	}
}
