// Package buildinfo provides build information for the workspace runtime.
//
// This package exposes build-time information injected via ldflags:
//
//   - Version: Semantic version (e.g., "1.0.0")
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// Usage:
//
//	go build -ldflags "-X github.com/epicenterhq/epicenter-go/internal/infra/buildinfo.Version=1.0.0 -X github.com/epicenterhq/epicenter-go/internal/infra/buildinfo.Commit=abc123"
package buildinfo
