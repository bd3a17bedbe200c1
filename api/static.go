package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"
)

// WebClientFS is the web-client bundle staticHandler serves from. A caller
// assigns it before NewRouter is called; nothing in this module does so
// (there is no go:embed directive here or in cmd/feoblog), so it stays
// nil unless an embedding program sets it. A nil WebClientFS makes
// staticHandler a 404-only handler.
var WebClientFS fs.FS

type staticEntry struct {
	etag string
	data []byte
}

var (
	staticOnce  sync.Once
	staticFiles map[string]staticEntry
)

// staticHandler is a path-prefix mapping from URL to embedded asset
// bytes (spec §4.5): it serves index.html when the URL ends in /,
// redirects a bare directory name to its slash form, and answers with a
// short hex ETag computed from the asset's content hash.
func staticHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if WebClientFS == nil {
			http.NotFound(w, r)
			return
		}
		staticOnce.Do(buildStaticFiles)

		p := strings.TrimPrefix(r.URL.Path, "/")
		switch {
		case p == "":
			p = "index.html"
		case strings.HasSuffix(p, "/"):
			p += "index.html"
		default:
			if _, isDir := staticFiles[p+"/index.html"]; isDir {
				http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
				return
			}
		}

		entry, ok := staticFiles[p]
		if !ok {
			http.NotFound(w, r)
			return
		}

		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == entry.etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", entry.etag)
		http.ServeContent(w, r, p, time.Time{}, bytes.NewReader(entry.data))
	})
}

func buildStaticFiles() {
	staticFiles = map[string]staticEntry{}
	if WebClientFS == nil {
		return
	}
	_ = fs.WalkDir(WebClientFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		data, err := fs.ReadFile(WebClientFS, path)
		if err != nil {
			return nil
		}
		sum := sha256.Sum256(data)
		staticFiles[path] = staticEntry{
			etag: `"` + hex.EncodeToString(sum[:])[:16] + `"`,
			data: data,
		}
		return nil
	})
}
