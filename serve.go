package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"jcr/internal/config"
	"jcr/internal/health"
	"jcr/internal/proxy"
	"jcr/internal/watch"
)

var (
	serveConfigFile string
	serveAddr       string
	serveWatch      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay in front of a JSON backend",
	Long: `Run the relay. Request bodies of configured JSON MIME types have their
comments stripped before they reach the backend. The configuration is reloaded
on SIGHUP and, unless --watch=false, whenever the file changes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigFile, "config", "config.json", "Path to configuration file")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides listen_addr)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "Reload the configuration when the file changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	setupLogger(os.Stdout, true)

	cfg, err := config.Load(serveConfigFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return err
	}

	addr := cfg.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	healthServer := health.New(cfg.HealthPort)

	proxyServer, err := proxy.New(cfg, version)
	if err != nil {
		slog.Error("Failed to create proxy server", "error", err)
		return err
	}
	defer func() {
		if err := proxyServer.Close(); err != nil {
			slog.Error("Failed to close proxy", "error", err)
		}
	}()

	healthServer.MarkReady()

	server := &http.Server{
		Addr:              addr,
		Handler:           proxyServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reloadMu sync.Mutex
	reload := func() {
		reloadMu.Lock()
		defer reloadMu.Unlock()

		healthServer.MarkNotReady()
		defer healthServer.MarkReady()

		slog.Info("Reloading configuration")
		if err := reloadConfig(proxyServer, serveConfigFile); err != nil {
			slog.Error("Failed to reload configuration", "error", err)
			return
		}
		slog.Info("Configuration reloaded successfully")
	}

	if serveWatch {
		watcher, err := watch.New(serveConfigFile, watch.DefaultDebounce, reload)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			slog.Warn("Configuration file watching disabled", "error", err)
		}
		defer watcher.Stop()
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting server", "addr", addr, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := healthServer.Start(); err != nil {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-hup:
				reload()
			case <-gctx.Done():
				return shutdown(server, healthServer)
			}
		}
	})

	return g.Wait()
}

func reloadConfig(p *proxy.Proxy, configFile string) error {
	newCfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := p.UpdateConfig(newCfg); err != nil {
		return fmt.Errorf("failed to update proxy configuration: %w", err)
	}
	return nil
}

func shutdown(server *http.Server, healthServer *health.Server) error {
	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	healthServer.MarkNotReady()

	var errs []error
	if err := server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown failed: %w", err))
	}
	if err := healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("health server shutdown failed: %w", err))
	}
	return errors.Join(errs...)
}
