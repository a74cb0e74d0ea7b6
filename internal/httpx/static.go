package httpx

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var mimeTypes = map[string]string{
	".html":  "text/html",
	".css":   "text/css",
	".js":    "text/javascript",
	".ttf":   "font/ttf",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
}

const defaultContentType = "text/plain"

// siteHandler serves the site from root: pages live under /src, shared media under /assets.
type siteHandler struct {
	root   string
	logger *zap.Logger
}

func newSiteHandler(root string, logger *zap.Logger) *siteHandler {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	return &siteHandler{root: root, logger: logger}
}

// sitePath maps a request path to a cleaned path relative to the site root.
func sitePath(urlPath string) string {
	p := urlPath
	if p == "" || p == "/" {
		return "/src/index.html"
	}
	p = path.Clean("/" + p)
	if !hasDirPrefix(p, "/assets") && !hasDirPrefix(p, "/src") {
		p = "/src" + p
	}
	return p
}

func hasDirPrefix(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, dir+"/")
}

func contentTypeFor(p string) string {
	if ct, ok := mimeTypes[strings.ToLower(path.Ext(p))]; ok {
		return ct
	}
	return defaultContentType
}

func (h *siteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "405 Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	rel := sitePath(r.URL.Path)
	full := filepath.Join(h.root, filepath.FromSlash(rel))

	content, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writePlain(w, http.StatusNotFound, "404 Not Found")
			return
		}
		h.logger.Warn("static file read failed", zap.String("path", rel), zap.Error(err))
		writePlain(w, http.StatusInternalServerError, "500 Internal Server Error")
		return
	}
	w.Header().Set("Content-Type", contentTypeFor(rel))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(content)
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
