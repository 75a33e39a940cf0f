package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"xtream-bridge/work/metrics"
	"xtream-bridge/work/playlist"
	"xtream-bridge/work/store"
)

// liveStream is one entry of a get_live_streams response. Field names and
// types follow the panel wire format that players expect; numeric-looking
// values like category_id go out as strings.
type liveStream struct {
	Num          int    `json:"num"`
	Name         string `json:"name"`
	StreamType   string `json:"stream_type"`
	StreamID     int    `json:"stream_id"`
	StreamIcon   string `json:"stream_icon"`
	EPGChannelID string `json:"epg_channel_id"`
	Added        string `json:"added"`
	CategoryID   string `json:"category_id"`
	CustomSID    string `json:"custom_sid"`
	TVArchive    int    `json:"tv_archive"`
	DirectSource string `json:"direct_source"`
}

type liveCategory struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	ParentID     int    `json:"parent_id"`
}

// PlayerAPI serves player_api.php, the main panel endpoint. Every call
// carries credentials; the action parameter selects the sub-resource, and
// no action at all means the login/handshake blob.
func (h *Handler) PlayerAPI(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	if action == "" && r.Method == http.MethodPost {
		action = r.PostFormValue("action")
	}

	user, password := h.authenticate(r)
	if user == nil {
		metrics.APIRequests.WithLabelValues(action, "auth_failed").Inc()
		writeJSON(w, map[string]any{
			"user_info": map[string]any{"auth": 0, "status": "Failed"},
		})
		return
	}

	snap := h.snapshotFor(r.Context(), user)
	metrics.APIRequests.WithLabelValues(action, "ok").Inc()

	switch action {
	case "get_live_categories":
		writeJSON(w, categoriesJSON(snap))

	case "get_live_streams":
		writeJSON(w, streamsJSON(snap, r.URL.Query().Get("category_id")))

	case "get_vod_categories", "get_vod_streams", "get_series_categories", "get_series":
		// Live-only bridge: VOD and series surfaces exist so players don't
		// error out, but they are always empty.
		writeJSON(w, []any{})

	case "get_short_epg", "get_simple_data_table":
		writeJSON(w, map[string]any{"epg_listings": []any{}})

	default:
		writeJSON(w, h.authBlob(r, user, password))
	}
}

func categoriesJSON(snap *playlist.Snapshot) []liveCategory {
	out := make([]liveCategory, 0, len(snap.Categories))
	for _, c := range snap.Categories {
		out = append(out, liveCategory{
			CategoryID:   strconv.Itoa(c.ID),
			CategoryName: c.Name,
			ParentID:     0,
		})
	}
	return out
}

func streamsJSON(snap *playlist.Snapshot, categoryID string) []liveStream {
	added := strconv.FormatInt(snap.FetchedAt.Unix(), 10)
	out := make([]liveStream, 0, len(snap.Channels))
	for i := range snap.Channels {
		ch := &snap.Channels[i]
		if categoryID != "" && strconv.Itoa(ch.CategoryID) != categoryID {
			continue
		}
		out = append(out, liveStream{
			Num:          ch.ID,
			Name:         ch.Name,
			StreamType:   "live",
			StreamID:     ch.ID,
			StreamIcon:   ch.LogoURL,
			EPGChannelID: ch.EPGChannelID,
			Added:        added,
			CategoryID:   strconv.Itoa(ch.CategoryID),
			CustomSID:    "",
			TVArchive:    0,
			DirectSource: ch.StreamURL,
		})
	}
	return out
}

// authBlob builds the user_info/server_info handshake players request on
// login. The password is echoed back as received; the stored hash never
// leaves the store.
func (h *Handler) authBlob(r *http.Request, user *store.User, password string) map[string]any {
	expDate := "1893456000" // far-future default when no expiry is set
	if user.ExpiresAt != nil && !user.ExpiresAt.IsZero() {
		expDate = strconv.FormatInt(user.ExpiresAt.Unix(), 10)
	}

	base, err := url.Parse(h.config.BaseURL)
	if err != nil {
		base = &url.URL{Scheme: "http", Host: r.Host}
	}
	serverHost := base.Hostname()
	serverPort := base.Port()
	if serverPort == "" {
		if base.Scheme == "https" {
			serverPort = "443"
		} else {
			serverPort = "80"
		}
	}

	return map[string]any{
		"user_info": map[string]any{
			"username":               user.Username,
			"password":               password,
			"auth":                   1,
			"status":                 "Active",
			"exp_date":               expDate,
			"is_trial":               "0",
			"active_cons":            "0",
			"created_at":             strconv.FormatInt(user.CreatedAt.Unix(), 10),
			"max_connections":        strconv.Itoa(user.MaxConns),
			"allowed_output_formats": []string{"m3u8", "ts"},
		},
		"server_info": map[string]any{
			"url":             serverHost,
			"port":            serverPort,
			"https_port":      serverPort,
			"server_protocol": base.Scheme,
			"rtmp_port":       "1935",
			"timezone":        "UTC",
			"timestamp_now":   time.Now().Unix(),
			"time_now":        time.Now().UTC().Format("2006-01-02 15:04:05"),
		},
	}
}

// GetM3U serves the playlist as M3U text. Unfiltered accounts get the raw
// upstream document verbatim; accounts with channel filters get a document
// regenerated from their filtered view.
func (h *Handler) GetM3U(w http.ResponseWriter, r *http.Request) {
	user, _ := h.authenticate(r)
	if user == nil {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		fmt.Fprint(w, "#EXTM3U\n# Authentication Failed\n")
		return
	}

	snap := h.snapshotFor(r.Context(), user)
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")

	if user.FilterInclude == "" && user.FilterExclude == "" && snap.Source != "" {
		fmt.Fprint(w, snap.Source)
		return
	}
	fmt.Fprint(w, renderM3U(snap))
}

// renderM3U rebuilds M3U text from a snapshot, preserving the attributes
// the parser retained.
func renderM3U(snap *playlist.Snapshot) string {
	var b strings.Builder
	if snap.EPGURL != "" {
		fmt.Fprintf(&b, "#EXTM3U url-tvg=%q\n", snap.EPGURL)
	} else {
		b.WriteString("#EXTM3U\n")
	}
	for i := range snap.Channels {
		ch := &snap.Channels[i]
		fmt.Fprintf(&b, "#EXTINF:-1 tvg-id=%q tvg-logo=%q group-title=%q,%s\n",
			ch.EPGChannelID, ch.LogoURL, ch.CategoryName, ch.Name)
		b.WriteString(ch.StreamURL)
		b.WriteByte('\n')
	}
	return b.String()
}

// XMLTV serves the EPG document. The URL preference order is the account's
// override, then the config override, then whatever url-tvg the playlist
// header advertised.
func (h *Handler) XMLTV(w http.ResponseWriter, r *http.Request) {
	user, _ := h.authenticate(r)
	if user == nil {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, "<xmltv></xmltv>")
		return
	}

	epgURL := user.EPGURL
	if epgURL == "" {
		epgURL = h.config.EPGURL
	}
	if epgURL == "" {
		snap := h.snapshotFor(r.Context(), user)
		epgURL = snap.EPGURL
	}

	w.Header().Set("Content-Type", "application/xml")
	if epgURL == "" {
		fmt.Fprint(w, "<xmltv></xmltv>")
		return
	}

	doc, err := h.epg.Get(r.Context(), epgURL)
	if err != nil {
		http.Error(w, "EPG unavailable", http.StatusBadGateway)
		return
	}
	fmt.Fprint(w, doc)
}
