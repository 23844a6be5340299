package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/stonekeeper/stonekeeper/internal/api"
	"github.com/stonekeeper/stonekeeper/internal/app/ledger"
	"github.com/stonekeeper/stonekeeper/internal/infra/docstore"
	"github.com/stonekeeper/stonekeeper/internal/store"
)

// Daemon is one running stonekeeper instance: a document backend, a bound
// session store, the ledger service, and the HTTP server.
type Daemon struct {
	cfg     Config
	backend docstore.Store
	store   *store.Store
	svc     *ledger.Service
	server  *api.Server
	httpSrv *http.Server
}

// openBackend selects the document store from configuration.
func openBackend(cfg Config) (docstore.Store, error) {
	switch cfg.Store.Backend {
	case "", "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.StorePath()), 0o755); err != nil {
			return nil, err
		}
		return docstore.OpenSQLite(cfg.StorePath())
	case "file":
		return docstore.OpenFile(cfg.StorePath())
	case "remote":
		if cfg.Store.RemoteURL == "" {
			return nil, fmt.Errorf("store backend %q requires remote_url", cfg.Store.Backend)
		}
		return docstore.NewRemote(cfg.Store.RemoteURL), nil
	case "memory":
		return docstore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// New assembles a daemon from configuration. Nothing is bound or listening
// until Run.
func New(cfg Config) (*Daemon, error) {
	backend, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}

	opts := []store.Option{store.WithDebounce(cfg.Store.Debounce())}
	if cfg.Store.Offline {
		opts = append(opts, store.WithOffline())
	}
	st := store.New(backend, opts...)

	hub := api.NewLiveHub()
	svc := ledger.NewService(st,
		ledger.WithChessConfig(cfg.Chess.KFactor, cfg.Chess.BaselineRating),
		ledger.WithNotify(hub.Broadcast),
	)

	server := api.NewServer(svc)
	server.SetLiveHub(hub)
	server.SetFeedBackend(backend)
	if cfg.Metrics.Enabled {
		server.EnableMetrics()
	}

	return &Daemon{
		cfg:     cfg,
		backend: backend,
		store:   st,
		svc:     svc,
		server:  server,
	}, nil
}

// Service exposes the ledger service (CLI subcommands drive it directly).
func (d *Daemon) Service() *ledger.Service { return d.svc }

// Bind attaches the session to the configured user id and waits for the
// first snapshot.
func (d *Daemon) Bind(ctx context.Context) error {
	if err := d.store.Bind(ctx, d.cfg.Store.UserID); err != nil {
		return fmt.Errorf("bind session: %w", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		switch d.store.Status() {
		case store.StatusLive:
			return nil
		case store.StatusError:
			return fmt.Errorf("session failed while loading")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return fmt.Errorf("session still loading after 10s")
}

// Run binds the session, starts the HTTP server, and blocks until SIGINT or
// SIGTERM, then shuts down gracefully, flushing any pending write.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Bind(ctx); err != nil {
		d.backend.Close()
		return err
	}

	d.httpSrv = &http.Server{
		Addr:    d.cfg.Addr(),
		Handler: d.server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("daemon: listening on %s (backend %s, user %s)",
			d.cfg.Addr(), d.cfg.Store.Backend, d.cfg.Store.UserID)
		if err := d.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		d.Close()
		return err
	case s := <-sig:
		log.Printf("daemon: received %v, shutting down", s)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("daemon: http shutdown: %v", err)
	}

	d.Close()
	return nil
}

// Close flushes the session and releases the backend.
func (d *Daemon) Close() {
	d.store.Close()
	if err := d.backend.Close(); err != nil {
		log.Printf("daemon: backend close: %v", err)
	}
}
