// Package handlers implements the client-facing HTTP surface: the Xtream
// panel endpoints, the stream routes, and the health check.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"xtream-bridge/work/cache"
	"xtream-bridge/work/config"
	"xtream-bridge/work/filter"
	"xtream-bridge/work/logger"
	"xtream-bridge/work/middleware"
	"xtream-bridge/work/playlist"
	"xtream-bridge/work/proxy"
	"xtream-bridge/work/store"
)

// Handler carries the shared dependencies of every route.
type Handler struct {
	config    *config.Config
	snapshots *cache.Snapshots
	epg       *cache.EPG
	auth      *store.Authenticator
	resolver  *proxy.Resolver
}

// New wires a handler over the given collaborators.
func New(cfg *config.Config, snaps *cache.Snapshots, epg *cache.EPG, auth *store.Authenticator, res *proxy.Resolver) *Handler {
	return &Handler{
		config:    cfg,
		snapshots: snaps,
		epg:       epg,
		auth:      auth,
		resolver:  res,
	}
}

// Register attaches all routes to the router. The stream route stays
// outside the gzip wrapper; compressing MPEG-TS is wasted work.
func (h *Handler) Register(r *mux.Router) {
	r.Handle("/player_api.php", middleware.Gzip(http.HandlerFunc(h.PlayerAPI))).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/get.php", middleware.Gzip(http.HandlerFunc(h.GetM3U))).Methods(http.MethodGet)
	r.Handle("/xmltv.php", middleware.Gzip(http.HandlerFunc(h.XMLTV))).Methods(http.MethodGet)
	r.HandleFunc("/live/{username}/{password}/{stream}", h.Stream).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
}

// credentials pulls the username/password pair from the query string or,
// for POSTed player_api.php calls, the form body.
func credentials(r *http.Request) (string, string) {
	username := r.URL.Query().Get("username")
	password := r.URL.Query().Get("password")
	if username == "" && r.Method == http.MethodPost {
		r.ParseForm()
		username = r.PostFormValue("username")
		password = r.PostFormValue("password")
	}
	return username, password
}

// authenticate resolves the request's credentials to an account, or nil
// when they are missing or wrong.
func (h *Handler) authenticate(r *http.Request) (*store.User, string) {
	username, password := credentials(r)
	if username == "" || password == "" {
		return nil, password
	}
	u, err := h.auth.Authenticate(username, password)
	if err != nil {
		logger.Error("authenticating %q: %v", username, err)
		return nil, password
	}
	return u, password
}

// sourceURL returns the playlist URL serving this account.
func (h *Handler) sourceURL(u *store.User) string {
	if u != nil && u.PlaylistURL != "" {
		return u.PlaylistURL
	}
	return h.config.M3UURL
}

// snapshotFor loads the account's playlist snapshot and applies the
// account's channel filters. A filter that fails to compile is logged and
// skipped rather than locking the user out.
func (h *Handler) snapshotFor(ctx context.Context, u *store.User) *playlist.Snapshot {
	snap, err := h.snapshots.Get(ctx, h.sourceURL(u))
	if err != nil {
		logger.Warn("snapshot for %q unavailable: %v", u.Username, err)
	}

	f, err := filter.Compile(u.FilterInclude, u.FilterExclude)
	if err != nil {
		logger.Warn("invalid filter for %q, serving unfiltered: %v", u.Username, err)
		return snap
	}
	return f.Apply(snap)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("writing JSON response: %v", err)
	}
}

// Health reports process liveness and the size of the default playlist.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snap, _ := h.snapshots.Get(r.Context(), h.config.M3UURL)
	writeJSON(w, map[string]any{
		"status":   "ok",
		"channels": len(snap.Channels),
	})
}
