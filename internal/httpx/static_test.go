package httpx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestSitePath(t *testing.T) {
	cases := map[string]string{
		"/":                   "/src/index.html",
		"":                    "/src/index.html",
		"/play.html":          "/src/play.html",
		"/src/play.js":        "/src/play.js",
		"/assets/voxel.svg":   "/assets/voxel.svg",
		"/assetsfoo/x.png":    "/src/assetsfoo/x.png",
		"/../../etc/passwd":   "/src/etc/passwd",
		"/src/../assets/a.js": "/assets/a.js",
	}
	for in, want := range cases {
		if got := sitePath(in); got != want {
			t.Fatalf("sitePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"/src/index.html":         "text/html",
		"/src/style.CSS":          "text/css",
		"/src/play.js":            "text/javascript",
		"/assets/font.woff2":      "font/woff2",
		"/assets/logo.svg":        "image/svg+xml",
		"/assets/photo.jpeg":      "image/jpeg",
		"/src/notes.md":           "text/plain",
		"/src/no-extension-at-al": "text/plain",
	}
	for in, want := range cases {
		if got := contentTypeFor(in); got != want {
			t.Fatalf("contentTypeFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func writeSiteFile(t *testing.T, root, rel, body string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestSiteHandlerServesFiles(t *testing.T) {
	root := t.TempDir()
	writeSiteFile(t, root, "src/index.html", "<h1>baa.haus</h1>")
	writeSiteFile(t, root, "src/style.css", "body{}")
	writeSiteFile(t, root, "assets/voxel.svg", "<svg/>")

	srv := httptest.NewServer(newSiteHandler(root, zap.NewNop()))
	defer srv.Close()

	cases := []struct {
		path        string
		status      int
		contentType string
		body        string
	}{
		{"/", http.StatusOK, "text/html", "<h1>baa.haus</h1>"},
		{"/style.css", http.StatusOK, "text/css", "body{}"},
		{"/src/style.css", http.StatusOK, "text/css", "body{}"},
		{"/assets/voxel.svg", http.StatusOK, "image/svg+xml", "<svg/>"},
		{"/missing.js", http.StatusNotFound, "", "404 Not Found"},
		{"/src", http.StatusInternalServerError, "", "500 Internal Server Error"},
	}
	for _, tc := range cases {
		resp, err := http.Get(srv.URL + tc.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tc.path, err)
		}
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != tc.status {
			t.Fatalf("GET %s status = %d, want %d", tc.path, resp.StatusCode, tc.status)
		}
		if tc.contentType != "" && resp.Header.Get("Content-Type") != tc.contentType {
			t.Fatalf("GET %s content-type = %q, want %q", tc.path, resp.Header.Get("Content-Type"), tc.contentType)
		}
		if string(raw) != tc.body {
			t.Fatalf("GET %s body = %q, want %q", tc.path, raw, tc.body)
		}
	}
}

func TestSiteHandlerRejectsWrites(t *testing.T) {
	h := newSiteHandler(t.TempDir(), zap.NewNop())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST / status = %d", rr.Code)
	}
}
