// Package httpserver provides the HTTP/HTTPS server for the workspace runtime.
package httpserver

import (
	"log/slog"
	"net/http"
)

// UpdateStore is the minimal interface the sync extension's HTTP handlers
// need against a workspace's CRDT update log.
type UpdateStore interface {
	// Append records an opaque CRDT update blob and returns its cursor.
	Append(update []byte) (cursor uint64, err error)
	// Since returns every update blob recorded after cursor.
	Since(cursor uint64) ([][]byte, error)
}

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Store backs the /updates endpoints.
	Store UpdateStore

	// Metrics, if non-nil, is served at /metrics.
	Metrics http.Handler

	// Logger for request logging.
	Logger *slog.Logger

	// RequireAuth requires a bearer peer token on every /updates request
	// (sync extension's "authenticated" mode). In "direct" mode this is false.
	RequireAuth bool

	// PeerToken is the shared peer auth token checked when RequireAuth is set.
	PeerToken string
}

// NewRouter creates and configures the HTTP router for the sync extension's
// update-exchange endpoints.
func NewRouter(cfg *RouterConfig) http.Handler {
	mux := http.NewServeMux()
	h := &updateHandler{cfg: cfg}

	mux.Handle("GET /health", Chain(http.HandlerFunc(h.health), RequestID(), Recover(cfg.Logger)))
	mux.Handle("GET /ready", Chain(http.HandlerFunc(h.ready), RequestID(), Recover(cfg.Logger)))

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	updates := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				h.postUpdate(w, r)
			case http.MethodGet:
				h.getUpdates(w, r)
			default:
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			}
		}),
		RequestID(),
		Recover(cfg.Logger),
		PeerAuth(cfg),
	)
	mux.Handle("/updates", updates)

	return mux
}
