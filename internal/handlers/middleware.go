package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/paperbridge/paperbridge/internal/web"
)

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &web.StatusWriter{ResponseWriter: w, Code: 200}
		next.ServeHTTP(sw, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.Code,
			"ms", time.Since(start).Milliseconds(),
		)
	})
}

// AuthMiddleware enforces bearer-token auth when a token is configured.
// The channel endpoint and file serving stay open: the wrapper page and
// the PDF.js frame load from this server without credentials.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && !openPath(r.URL.Path) {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				web.Error(w, 401, fmt.Errorf("unauthorized"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func openPath(path string) bool {
	switch {
	case path == "/bridge", path == "/channel", path == "/health":
		return true
	case len(path) >= 8 && path[:8] == "/viewer/":
		return true
	case len(path) >= 6 && path[:6] == "/docs/":
		return true
	case len(path) >= 8 && path[:8] == "/assets/":
		return true
	}
	return false
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}
