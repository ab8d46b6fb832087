package redisserver

import (
	"log/slog"
)

// KVStore is the minimal interface a workspace's KV definition exposes to
// the RESP front-end.
type KVStore interface {
	Get(key string) (value []byte, ok bool)
	Set(key string, value []byte)
	Del(key string) (existed bool)
	Exists(key string) bool
}

// CommandHandler dispatches RESP commands against a KVStore.
type CommandHandler struct {
	store     KVStore
	authToken string
	logger    *slog.Logger
}

// NewCommandHandler creates a handler serving store over RESP. authToken, if
// non-empty, requires an AUTH command before any other command succeeds.
func NewCommandHandler(store KVStore, authToken string, logger *slog.Logger) *CommandHandler {
	return &CommandHandler{store: store, authToken: authToken, logger: logger}
}

// Handle dispatches a single parsed command against c's connection state.
func (h *CommandHandler) Handle(c *Conn, args [][]byte) {
	name := normalizeCommandName(args[0])

	if h.authToken != "" && name != "AUTH" && name != "PING" {
		st := c.GetState()
		if !st.Authenticated {
			_ = WriteError(c.bw, "NOAUTH Authentication required")
			return
		}
	}

	switch name {
	case "PING":
		h.handlePing(c, args)
	case "AUTH":
		h.handleAuth(c, args)
	case "GET":
		h.handleGet(c, args)
	case "SET":
		h.handleSet(c, args)
	case "DEL":
		h.handleDel(c, args)
	case "EXISTS":
		h.handleExists(c, args)
	default:
		_ = WriteError(c.bw, "ERR unknown command '"+name+"'")
	}
}

func (h *CommandHandler) handlePing(c *Conn, args [][]byte) {
	if len(args) > 1 {
		_ = WriteBulk(c.bw, args[1])
		return
	}
	_ = WriteSimpleString(c.bw, "PONG")
}

func (h *CommandHandler) handleAuth(c *Conn, args [][]byte) {
	if len(args) != 2 {
		_ = WriteError(c.bw, "ERR wrong number of arguments for 'auth' command")
		return
	}
	if h.authToken == "" {
		_ = WriteError(c.bw, "ERR Client sent AUTH, but no password is set")
		return
	}
	if string(args[1]) != h.authToken {
		_ = WriteError(c.bw, "WRONGPASS invalid username-password pair")
		return
	}
	st := c.GetState()
	st.Authenticated = true
	c.SetState(*st)
	_ = WriteSimpleString(c.bw, "OK")
}

func (h *CommandHandler) handleGet(c *Conn, args [][]byte) {
	if len(args) != 2 {
		_ = WriteError(c.bw, "ERR wrong number of arguments for 'get' command")
		return
	}
	v, ok := h.store.Get(string(args[1]))
	if !ok {
		_ = WriteNullBulk(c.bw)
		return
	}
	_ = WriteBulk(c.bw, v)
}

func (h *CommandHandler) handleSet(c *Conn, args [][]byte) {
	if len(args) != 3 {
		_ = WriteError(c.bw, "ERR wrong number of arguments for 'set' command")
		return
	}
	h.store.Set(string(args[1]), args[2])
	_ = WriteSimpleString(c.bw, "OK")
}

func (h *CommandHandler) handleDel(c *Conn, args [][]byte) {
	if len(args) < 2 {
		_ = WriteError(c.bw, "ERR wrong number of arguments for 'del' command")
		return
	}
	var count int64
	for _, k := range args[1:] {
		if h.store.Del(string(k)) {
			count++
		}
	}
	_ = WriteInteger(c.bw, count)
}

func (h *CommandHandler) handleExists(c *Conn, args [][]byte) {
	if len(args) < 2 {
		_ = WriteError(c.bw, "ERR wrong number of arguments for 'exists' command")
		return
	}
	var count int64
	for _, k := range args[1:] {
		if h.store.Exists(string(k)) {
			count++
		}
	}
	_ = WriteInteger(c.bw, count)
}
