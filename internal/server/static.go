package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// staticHandler serves the built practice client from StaticDir. Unknown
// paths fall back to index.html so the client router can handle them; /api
// paths never fall back.
func (s *Server) staticHandler() http.Handler {
	dir := s.cfg.StaticDir
	index := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) >= 5 && r.URL.Path[:5] == "/api/" {
			http.NotFound(w, r)
			return
		}

		// Cleaning the rooted path keeps ".." from escaping the bundle dir.
		clean := path.Clean("/" + r.URL.Path)
		target := filepath.Join(dir, filepath.FromSlash(clean))

		info, err := os.Stat(target)
		if err != nil || info.IsDir() {
			http.ServeFile(w, r, index)
			return
		}
		http.ServeFile(w, r, target)
	})
}
