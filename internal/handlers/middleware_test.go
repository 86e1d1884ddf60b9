package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})
}

func TestAuthMiddleware(t *testing.T) {
	h := AuthMiddleware("secret", okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/annotations", nil))
	if w.Code != 401 {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest("GET", "/annotations", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != 401 {
		t.Errorf("wrong token: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest("GET", "/annotations", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}
}

func TestAuthMiddlewareDisabledWithoutToken(t *testing.T) {
	h := AuthMiddleware("", okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/annotations", nil))
	if w.Code != 200 {
		t.Errorf("status = %d, want 200 with auth disabled", w.Code)
	}
}

func TestAuthMiddlewareOpenPaths(t *testing.T) {
	// The browser loads these without credentials; they must stay open even
	// when a token is set.
	h := AuthMiddleware("secret", okHandler())

	for _, path := range []string{
		"/bridge",
		"/channel",
		"/health",
		"/viewer/web/viewer.html",
		"/docs/papers/intro.pdf",
		"/assets/capture.js",
	} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		if w.Code != 200 {
			t.Errorf("%s: status = %d, want 200 without credentials", path, w.Code)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware(okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/open", nil))
	if w.Code != 204 {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
	if w.Code != 200 {
		t.Errorf("status = %d", w.Code)
	}
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(418)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/teapot", nil))
	if w.Code != 418 {
		t.Errorf("status = %d, want 418 preserved", w.Code)
	}
}
