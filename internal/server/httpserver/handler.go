package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
)

type updateHandler struct {
	cfg *RouterConfig
}

func (h *updateHandler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *updateHandler) ready(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Store == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// postUpdate accepts a raw CRDT update blob in the request body and appends
// it to the workspace's update log.
func (h *updateHandler) postUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	cursor, err := h.cfg.Store.Append(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]uint64{"cursor": cursor})
}

// getUpdates returns every update blob recorded after the ?since= cursor.
func (h *updateHandler) getUpdates(w http.ResponseWriter, r *http.Request) {
	since := uint64(0)
	if s := r.URL.Query().Get("since"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			http.Error(w, "invalid since cursor", http.StatusBadRequest)
			return
		}
		since = v
	}

	updates, err := h.cfg.Store.Since(since)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Updates [][]byte `json:"updates"`
	}{Updates: updates})
}
