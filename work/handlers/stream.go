package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"xtream-bridge/work/logger"
	"xtream-bridge/work/metrics"
	"xtream-bridge/work/utils"
)

// Stream resolves /live/{username}/{password}/{id}[.ext] to an upstream
// URL and serves it in the account's transport mode. The extension suffix
// is advisory only and never changes which channel is resolved.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	user, err := h.auth.Authenticate(vars["username"], vars["password"])
	if err != nil {
		logger.Error("authenticating stream request: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}

	id, err := strconv.Atoi(utils.StripContainerExtension(vars["stream"]))
	if err != nil {
		metrics.StreamRequests.WithLabelValues(user.TransportMode, "not_found").Inc()
		http.Error(w, "Stream not found", http.StatusNotFound)
		return
	}

	snap := h.snapshotFor(r.Context(), user)
	ch := snap.ChannelByID(id)
	if ch == nil {
		metrics.StreamRequests.WithLabelValues(user.TransportMode, "not_found").Inc()
		http.Error(w, "Stream not found", http.StatusNotFound)
		return
	}

	h.resolver.Serve(w, r, user.TransportMode, ch.StreamURL)
}
