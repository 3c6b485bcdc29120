package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/serp/pkg/api"
	"github.com/rubiojr/serp/pkg/facet"
	"github.com/rubiojr/serp/pkg/log"
	"github.com/rubiojr/serp/pkg/realtime"
	"github.com/urfave/cli/v3"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve search sessions over HTTP with a websocket event stream",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on (overrides config listen)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not persist session navigation",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c)
		},
	}
}

func serve(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := log.ForService("serve")

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	opts := []api.Option{
		api.WithHub(realtime.NewHub(0)),
		api.WithSessionLimits(cfg.MaxSessions, cfg.SessionTTL.Duration),
	}
	if !c.Bool("no-history") {
		store, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, api.WithHistory(store))
	}
	srv := api.NewServer(newClient(cfg), reg, opts...)

	addr := cfg.Listen
	if l := c.String("listen"); l != "" {
		addr = l
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on http://%s", addr)
		logger.Infof("  GET    /health")
		logger.Infof("  GET    /api/facets/{entityType}")
		logger.Infof("  GET    /api/pid?id=")
		logger.Infof("  GET    /api/search[/{entityType}]")
		logger.Infof("  POST   /api/search/{filters,sort,page,text}")
		logger.Infof("  DELETE /api/search")
		logger.Infof("  POST   /api/zoom, DELETE /api/zoom")
		logger.Infof("  GET    /api/search/events (websocket)")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var watcher *fsnotify.Watcher
	var watchEvents <-chan fsnotify.Event
	var watchErrors <-chan error
	if cfg.FacetsFile != "" {
		watcher, err = fsnotify.NewWatcher()
		if err != nil {
			logger.Warnf("failed to create facets file watcher: %v", err)
		} else {
			defer watcher.Close()
			if err := watcher.Add(cfg.FacetsFile); err != nil {
				logger.Warnf("failed to watch facets file %s: %v", cfg.FacetsFile, err)
			} else {
				logger.Infof("Watching facets file for changes: %s", cfg.FacetsFile)
				watchEvents = watcher.Events
				watchErrors = watcher.Errors
			}
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case <-ctx.Done():
			return shutdown(server, logger)
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				if cfg.FacetsFile == "" {
					continue
				}
				logger.Infof("Received SIGHUP, reloading facets...")
				if err := reloadFacets(cfg.FacetsFile, srv); err != nil {
					logger.Errorf("failed to reload facets: %v", err)
				}
				continue
			}
			return shutdown(server, logger)
		case event, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			logger.Infof("Facets file changed: %s (event: %s), reloading...", event.Name, event.Op.String())

			// Editors replace files with atomic renames.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(cfg.FacetsFile); os.IsNotExist(err) {
					logger.Warnf("facets file was removed and not replaced, keeping current facets")
					continue
				}
				if err := watcher.Add(cfg.FacetsFile); err != nil {
					logger.Warnf("failed to re-add facets file to watcher: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}

			if err := reloadFacets(cfg.FacetsFile, srv); err != nil {
				logger.Errorf("failed to reload facets: %v", err)
			}
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			logger.Warnf("facets file watcher error: %v", err)
		}
	}
}

// reloadFacets swaps in the facet table at path. A table that fails to load
// leaves the current one in place.
func reloadFacets(path string, srv *api.Server) error {
	reg, err := facet.LoadFile(path)
	if err != nil {
		return err
	}
	for _, a := range reg.Ambiguities() {
		log.ForService("serve").Warnf("ambiguous identifier %s", a)
	}
	srv.SetRegistry(reg)
	log.ForService("serve").Infof("Loaded %d facets from %s", reg.Len(), path)
	return nil
}

func shutdown(server *http.Server, logger *log.Logger) error {
	logger.Infof("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
