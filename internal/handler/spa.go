// Package handler contains the HTTP handlers of the UnityBoard API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the request (path params, query, JSON body)
//  2. Call one service method
//  3. Write the {"ok": ...} envelope, or map the error with writeError
//
// Handlers hold no business rules: membership checks, validation beyond
// request shape, and notifications all live in internal/service.
package handler

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
)

// SPAHandler serves the built single-page client. Paths that match a file
// are served as-is; everything else gets index.html so client-side routes
// such as /projects/abc survive a reload.
type SPAHandler struct {
	root   http.FileSystem
	files  http.Handler
	logger *slog.Logger
}

// NewSPAHandler serves the client build in dir. http.Dir rejects ".." so
// requests cannot escape it.
func NewSPAHandler(dir string, logger *slog.Logger) *SPAHandler {
	root := http.Dir(dir)
	return &SPAHandler{root: root, files: http.FileServer(root), logger: logger}
}

func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	if name != "/" && !strings.HasSuffix(name, "/index.html") {
		if f, err := h.root.Open(name); err == nil {
			info, statErr := f.Stat()
			f.Close()
			if statErr == nil && !info.IsDir() {
				h.files.ServeHTTP(w, r)
				return
			}
		}
	}
	h.serveIndex(w, r)
}

func (h *SPAHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	f, err := h.root.Open("/index.html")
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.logger.Error("failed to open index.html", slog.String("error", err.Error()))
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.logger.Error("failed to stat index.html", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	// The shell must always be revalidated so a new deploy is picked up.
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "index.html", info.ModTime(), f)
}
