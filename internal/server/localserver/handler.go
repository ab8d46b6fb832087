package localserver

import (
	"fmt"
	"io"
	"strings"
)

// Status is the point-in-time view the status command renders.
type Status struct {
	Version   string
	Workspace string
	Files     int
	WALBytes  int64
}

// Handler executes line-based management commands against the hosting
// process. Command wiring is injected so the package stays free of
// workspace dependencies.
type Handler struct {
	status   func() Status
	snapshot func() error
}

// NewHandler creates a Handler. Either hook may be nil, which reports the
// corresponding command as unavailable.
func NewHandler(status func() Status, snapshot func() error) *Handler {
	return &Handler{status: status, snapshot: snapshot}
}

// Execute runs one command line and writes the response to w.
func (h *Handler) Execute(w io.Writer, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "ping":
		_, err := fmt.Fprintln(w, "pong")
		return err
	case "status":
		if h.status == nil {
			_, err := fmt.Fprintln(w, "error: status unavailable")
			return err
		}
		st := h.status()
		_, err := fmt.Fprintf(w, "version:\t%s\nworkspace:\t%s\nfiles:\t%d\nwal_bytes:\t%d\n",
			st.Version, st.Workspace, st.Files, st.WALBytes)
		return err
	case "snapshot":
		if h.snapshot == nil {
			_, err := fmt.Fprintln(w, "error: snapshot unavailable")
			return err
		}
		if err := h.snapshot(); err != nil {
			_, werr := fmt.Fprintf(w, "error: %v\n", err)
			return werr
		}
		_, err := fmt.Fprintln(w, "ok")
		return err
	default:
		_, err := fmt.Fprintf(w, "unknown command: %s\n", fields[0])
		return err
	}
}
