package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/epicenterhq/epicenter-go/internal/content"
	"github.com/epicenterhq/epicenter-go/internal/ext/netsync"
	"github.com/epicenterhq/epicenter-go/internal/ext/persistence"
	"github.com/epicenterhq/epicenter-go/internal/ext/respkv"
	"github.com/epicenterhq/epicenter-go/internal/infra/buildinfo"
	"github.com/epicenterhq/epicenter-go/internal/infra/confloader"
	"github.com/epicenterhq/epicenter-go/internal/infra/shutdown"
	"github.com/epicenterhq/epicenter-go/internal/infra/tlsroots"
	"github.com/epicenterhq/epicenter-go/internal/server/config"
	"github.com/epicenterhq/epicenter-go/internal/server/httpserver"
	"github.com/epicenterhq/epicenter-go/internal/server/localserver"
	"github.com/epicenterhq/epicenter-go/internal/storage/snapshot"
	"github.com/epicenterhq/epicenter-go/internal/telemetry/logger"
	"github.com/epicenterhq/epicenter-go/internal/telemetry/metric"
	"github.com/epicenterhq/epicenter-go/internal/vfs"
	"github.com/epicenterhq/epicenter-go/internal/workspace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("epicenterd %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	log.Info("starting epicenterd",
		"version", buildinfo.Get().Version,
		"config", *configFile)

	registry := metric.NewRegistry()
	collector := metric.NewCollector(registry)

	// Workspace: files table plus the persistence / sync / resp extensions
	// the configuration asks for.
	guid := cfg.Cluster.NodeID
	if guid == "" {
		guid = "epicenter"
	}
	builder := workspace.NewWorkspace(guid, true)
	workspace.WithTable(builder, vfs.FilesTableName, vfs.FilesTable())

	persistCfg := persistence.Config{Dir: cfg.Storage.DataDir}
	if cfg.Security.EncryptionKey != "" {
		persistCfg.Encryption = &snapshot.EncryptionConfig{
			Passphrase: []byte(cfg.Security.EncryptionKey),
		}
	}
	builder.WithExtension(persistence.Key, persistence.Extension(persistCfg))

	if cfg.Sync.Mode != "" {
		syncCfg := netsync.Config{
			Mode:      netsync.Mode(cfg.Sync.Mode),
			ServerURL: cfg.Sync.ServerURL,
			AuthURL:   cfg.Sync.AuthURL,
		}
		if cfg.Security.TLSCAFile != "" {
			roots, rerr := tlsroots.NewPool()
			if rerr != nil {
				return fmt.Errorf("load system roots: %w", rerr)
			}
			if aerr := roots.AddCertFile(cfg.Security.TLSCAFile); aerr != nil {
				return fmt.Errorf("load tls ca: %w", aerr)
			}
			syncCfg.HTTPClient = &http.Client{
				Timeout:   10 * time.Second,
				Transport: &http.Transport{TLSClientConfig: roots.TLSConfig()},
			}
		}
		builder.WithExtension(netsync.Key, netsync.Extension(syncCfg))
	}
	if cfg.Server.Redis.Enabled {
		builder.WithExtension(respkv.Key, respkv.Extension(respkv.Config{
			Addr:      cfg.Server.Redis.Addr,
			AuthToken: cfg.Security.PeerToken,
		}))
	}

	client := builder.Build()
	readyCtx, cancelReady := context.WithTimeout(context.Background(), 30*time.Second)
	err = client.WhenReady(readyCtx)
	cancelReady()
	if err != nil {
		return fmt.Errorf("workspace ready: %w", err)
	}

	persist := workspace.Extension[*persistence.Persistence](client, persistence.Key)
	pool := content.NewPool(persist.ContentProvider())
	fsys := vfs.New(workspace.Table[vfs.FileRow](client, vfs.FilesTableName), pool)

	log.Info("workspace ready",
		"guid", client.ID(),
		"files", fsys.Index().Len())

	// Relay endpoints: peers POST/GET state blobs against this node.
	updateLog := netsync.NewUpdateLog()
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Store:       updateLog,
		Logger:      nil,
		Metrics:     registry.Handler(),
		RequireAuth: cfg.Security.PeerToken != "",
		PeerToken:   cfg.Security.PeerToken,
	})
	httpServer := httpserver.New(cfg.Server.HTTP.Addr, router)

	localSrv := localserver.New(cfg.Server.Local.Path, localserver.NewHandler(
		func() localserver.Status {
			return localserver.Status{
				Version:   buildinfo.Get().Version,
				Workspace: client.ID(),
				Files:     fsys.Index().Len(),
				WALBytes:  persist.WALSize(),
			}
		},
		persist.Snapshot,
	))

	// Storage metrics sampler.
	samplerStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-samplerStop:
				return
			case <-ticker.C:
				collector.SampleMemory()
				collector.RecordWALSize(persist.WALSize())
			}
		}
	}()

	// Reload the log level when the config file changes on disk.
	var confWatcher *confloader.Watcher
	if *configFile != "" {
		confWatcher, err = confloader.NewWatcher()
		if err == nil {
			if werr := confWatcher.Watch(*configFile); werr == nil {
				confWatcher.OnChange(func(path string) {
					fresh, lerr := loadConfig(path)
					if lerr != nil {
						log.Warn("config reload failed", "error", lerr)
						return
					}
					logger.SetLevel(fresh.Log.Level)
					log.Info("log level reloaded", "level", fresh.Log.Level)
				})
				confWatcher.StartAsync()
			}
		}
	}

	shutdownHandler := shutdown.NewHandler(30 * time.Second)
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down local management socket")
		return localSrv.Shutdown(ctx)
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		close(samplerStop)
		if confWatcher != nil {
			_ = confWatcher.Stop()
		}
		return nil
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("flushing content documents")
		return pool.DestroyAll()
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("destroying workspace")
		fsys.Close()
		return client.Destroy()
	})

	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.HTTP.Addr)
		var serveErr error
		if cfg.Server.HTTP.TLSCertFile != "" && cfg.Server.HTTP.TLSKeyFile != "" {
			serveErr = httpServer.ListenAndServeTLS(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile)
		} else {
			serveErr = httpServer.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			log.Error("HTTP server error", "error", serveErr)
		}
	}()

	go func() {
		if lerr := localSrv.ListenAndServe(); lerr != nil {
			log.Warn("local management socket unavailable", "error", lerr)
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from defaults, file, and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
