package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// mimeTypes maps file extensions to content types for everything a PDF.js
// distribution and the documents it opens can request. Unknown extensions
// fall back to application/octet-stream.
var mimeTypes = map[string]string{
	".pdf":   "application/pdf",
	".html":  "text/html",
	".js":    "application/javascript",
	".mjs":   "application/javascript",
	".css":   "text/css",
	".json":  "application/json",
	".wasm":  "application/wasm",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".woff2": "font/woff2",
	".woff":  "font/woff",
	".ttf":   "font/ttf",
	".bcmap": "application/octet-stream",
}

// ContentType returns the content type for a file path by extension.
func ContentType(path string) string {
	if mt, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "application/octet-stream"
}

// SafePath validates that the resolved path stays within the base directory.
// Returns the cleaned absolute path or an error if traversal is detected.
func SafePath(base, userPath string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	resolved := filepath.Clean(filepath.Join(absBase, filepath.FromSlash(userPath)))
	if !strings.HasPrefix(resolved, absBase+string(filepath.Separator)) && resolved != absBase {
		return "", fmt.Errorf("path %q escapes base directory %q", userPath, absBase)
	}

	return resolved, nil
}

// FileServer serves files from a base directory under a URL prefix, using
// the viewer MIME table. The viewer and its documents are served from the
// same origin so PDF.js security checks pass.
type FileServer struct {
	Prefix string // e.g. "/viewer/"
	Base   string // directory on disk
}

func (fs *FileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, fs.Prefix)
	if rel == "" || strings.HasSuffix(rel, "/") {
		rel += "index.html"
	}

	path, err := SafePath(fs.Base, rel)
	if err != nil {
		slog.Warn("file request rejected", "path", r.URL.Path, "err", err)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("file not found", "path", path)
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", ContentType(path))
	_, _ = w.Write(data)
}
