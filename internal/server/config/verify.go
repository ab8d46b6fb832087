// Package config defines the server configuration structure.
package config

import (
	"errors"
	"net"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifySync(&cfg.Sync); err != nil {
		return err
	}
	return nil
}

func verifySync(cfg *SyncSection) error {
	switch cfg.Mode {
	case "", "direct", "authenticated":
	default:
		return errors.New("sync.mode must be direct or authenticated")
	}
	if cfg.Mode != "" && cfg.ServerURL == "" {
		return errors.New("sync.server_url is required when sync.mode is set")
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	for _, addr := range []string{cfg.HTTP.Addr, cfg.Redis.Addr, cfg.Cluster.Addr} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return errors.New("invalid listen address " + addr + ": " + err.Error())
		}
	}

	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return errors.New("TLS file not readable: " + f)
		}
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}

	// Check if data directory exists or can be created
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}

	if cfg.SnapshotKeep < 1 {
		return errors.New("storage.snapshot_keep must be at least 1")
	}

	return nil
}
