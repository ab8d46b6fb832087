// Package respkv exposes a workspace's keyed values over the Redis RESP
// protocol: GET/SET/DEL/EXISTS against a dedicated LWW store on the root
// document, so redis-cli (or any client library) can poke at a live
// workspace. Optional extension — a workspace that never chains it never
// listens.
package respkv

import (
	"context"
	"log/slog"
	"time"

	"github.com/epicenterhq/epicenter-go/internal/kv"
	"github.com/epicenterhq/epicenter-go/internal/server/redisserver"
	"github.com/epicenterhq/epicenter-go/internal/workspace"
)

// Key is the conventional extension key respkv registers under.
const Key = "resp"

// Config configures the RESP front-end.
type Config struct {
	// Addr is the plaintext listen address, e.g. "127.0.0.1:6379".
	Addr string
	// AuthToken, when non-empty, requires AUTH before other commands.
	AuthToken string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Store adapts a workspace-owned LWW KV to redisserver.KVStore.
type Store struct {
	lww *kv.YKeyValueLww[[]byte]
}

// Get returns the value for key.
func (s *Store) Get(key string) ([]byte, bool) {
	return s.lww.Get(key)
}

// Set assigns value to key.
func (s *Store) Set(key string, value []byte) {
	cp := make([]byte, len(value))
	copy(cp, value)
	s.lww.Set(key, cp)
}

// Del removes key, reporting whether it existed.
func (s *Store) Del(key string) bool {
	existed := s.lww.Has(key)
	s.lww.Delete(key)
	return existed
}

// Exists reports whether key has a value.
func (s *Store) Exists(key string) bool {
	return s.lww.Has(key)
}

// Exports is the extension's exported surface.
type Exports struct {
	// Store is the RESP-visible keyed store, also usable in-process.
	Store *Store

	server *redisserver.Server
	cancel context.CancelFunc
}

// Extension returns a factory for a workspace's .WithExtension chain. The
// RESP store shares the workspace's document and clock, so its entries
// ride the same transactions, persistence, and sync as every table.
func Extension(cfg Config) func(*workspace.Client) workspace.Lifecycle {
	return func(client *workspace.Client) workspace.Lifecycle {
		logger := cfg.Logger
		if logger == nil {
			logger = slog.Default()
		}

		store := &Store{lww: kv.NewYKeyValueLww[[]byte](client.Document(), client.Clock())}

		srvCfg := redisserver.DefaultConfig()
		srvCfg.PlainEnabled = true
		srvCfg.PlainAddress = cfg.Addr
		server := redisserver.New(srvCfg, store, cfg.AuthToken, logger)

		ctx, cancel := context.WithCancel(context.Background())
		exports := &Exports{Store: store, server: server, cancel: cancel}

		return workspace.Lifecycle{
			WhenReady: func(context.Context) error {
				return server.Start(ctx)
			},
			Destroy: func() error {
				cancel()
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				return server.Shutdown(shutdownCtx)
			},
			Exports: exports,
		}
	}
}
