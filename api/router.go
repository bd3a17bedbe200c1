// Package api implements the REST protocol surface described in spec §6:
// item list/get/put, attachment get/put/head, pagination, immutable-ETag
// caching, CORS, and the embedded static-asset handler.
package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/feoblog/feoblog/store"
)

var log = logrus.WithField("prefix", "api")

// Server holds the dependencies every handler needs. One Server backs
// the whole router; it is read-only once NewRouter returns (spec §5).
type Server struct {
	Store *store.Store
}

const protobuf3ContentType = "application/protobuf3"

// NewRouter builds the full HTTP handler: route table, CORS wrapping,
// and the embedded static-asset fallback, matching the teacher's
// gorilla/mux + rs/cors combination (shared/gateway).
func NewRouter(s *store.Store) http.Handler {
	srv := &Server{Store: s}
	r := mux.NewRouter()

	r.HandleFunc("/homepage/proto3", srv.handleHomepage).Methods(http.MethodGet)
	r.HandleFunc("/homepage/proto3", optionsHandler(http.MethodGet)).Methods(http.MethodOptions)

	r.HandleFunc("/u/{user}/proto3", srv.handleUserItems).Methods(http.MethodGet)
	r.HandleFunc("/u/{user}/proto3", optionsHandler(http.MethodGet)).Methods(http.MethodOptions)

	r.HandleFunc("/u/{user}/feed/proto3", srv.handleUserFeed).Methods(http.MethodGet)
	r.HandleFunc("/u/{user}/feed/proto3", optionsHandler(http.MethodGet)).Methods(http.MethodOptions)

	r.HandleFunc("/u/{user}/profile/proto3", srv.handleUserProfile).Methods(http.MethodGet)
	r.HandleFunc("/u/{user}/profile/proto3", optionsHandler(http.MethodGet)).Methods(http.MethodOptions)

	r.HandleFunc("/u/{user}/i/{sig}/proto3", srv.handleGetItem).Methods(http.MethodGet)
	r.HandleFunc("/u/{user}/i/{sig}/proto3", srv.handlePutItem).Methods(http.MethodPut)
	r.HandleFunc("/u/{user}/i/{sig}/proto3", optionsHandler(http.MethodGet, http.MethodPut)).Methods(http.MethodOptions)

	r.HandleFunc("/u/{user}/i/{sig}/replies/proto3", srv.handleReplies).Methods(http.MethodGet)
	r.HandleFunc("/u/{user}/i/{sig}/replies/proto3", optionsHandler(http.MethodGet)).Methods(http.MethodOptions)

	r.HandleFunc("/u/{user}/i/{sig}/files/{name}", srv.handleGetFile).Methods(http.MethodGet)
	r.HandleFunc("/u/{user}/i/{sig}/files/{name}", srv.handleHeadFile).Methods(http.MethodHead)
	r.HandleFunc("/u/{user}/i/{sig}/files/{name}", srv.handlePutFile).Methods(http.MethodPut)
	r.HandleFunc("/u/{user}/i/{sig}/files/{name}", optionsHandler(http.MethodGet, http.MethodHead, http.MethodPut)).Methods(http.MethodOptions)

	r.HandleFunc("/metrics", metricsHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", srv.healthzHandler).Methods(http.MethodGet)

	r.PathPrefix("/").Handler(staticHandler())

	c := cors.New(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodOptions},
		AllowedHeaders:     []string{"*"},
		ExposedHeaders:     []string{"Signature", "X-FB-Quota-Exceeded"},
		MaxAge:             86400,
		OptionsPassthrough: true,
	})

	return immutableETagMiddleware(metricsMiddleware(c.Handler(r)))
}

// immutableETagMiddleware answers any GET/HEAD that carries a matching
// If-None-Match with 304 before the request ever reaches the route
// table, so it never consults storage (spec §4.5, property P8).
func immutableETagMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if (r.Method == http.MethodGet || r.Method == http.MethodHead) && isImmutableResource(r.URL.Path) {
			if inm := r.Header.Get("If-None-Match"); inm == `"immutable"` || inm == "immutable" {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// isImmutableResource reports whether a path names a content-addressed
// resource (an item or attachment), the only things the immutable-ETag
// short-circuit applies to.
func isImmutableResource(path string) bool {
	return (strings.HasSuffix(path, "/proto3") && strings.Contains(path, "/i/") &&
		!strings.HasSuffix(path, "/replies/proto3")) ||
		strings.Contains(path, "/files/")
}

func setImmutableHeaders(w http.ResponseWriter) {
	w.Header().Set("ETag", `"immutable"`)
	w.Header().Set("Cache-Control", "public, max-age=31536000, no-transform, immutable")
}

// optionsHandler answers an OPTIONS request for one resource with 204
// and the resource's allowed method list (spec §6).
func optionsHandler(methods ...string) http.HandlerFunc {
	allow := joinMethods(append(methods, http.MethodOptions))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", allow)
		w.WriteHeader(http.StatusNoContent)
	}
}

func joinMethods(methods []string) string {
	return strings.Join(methods, ", ")
}
