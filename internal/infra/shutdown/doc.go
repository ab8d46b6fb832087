// Package shutdown provides graceful shutdown for the workspace runtime.
//
// This package handles process termination signals:
//
//   - Signal handling (SIGINT, SIGTERM)
//   - Hooks receive a context that expires after the configured timeout;
//     a hook that ignores it is not interrupted
//   - Cleanup callback registration
//   - Shutdown coordination
//
// Usage:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown(func(ctx context.Context) error { return srv.Shutdown(ctx) })
//	err := h.Wait() // blocks until a signal, then runs hooks in reverse order
package shutdown
