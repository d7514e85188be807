// Package server assembles the HTTP handlers and starts the server. A node
// serves its reading journal; a host serves node sessions and page mirrors.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matthewbaird/probenode/internal/journal"
	"github.com/matthewbaird/probenode/internal/session"
)

// Config holds server configuration. Route groups whose dependency is nil
// are not registered.
type Config struct {
	Port    int
	Journal journal.Store
	Peers   *session.Manager
}

// NewRouter returns the handler for cfg.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Journal != nil {
		rh := NewReadingsHandler(cfg.Journal)
		r.Get("/v1/readings", rh.ListReadings)
		r.Get("/v1/readings/summary", rh.Summary)
	}

	if cfg.Peers != nil {
		hh := NewHostHandler(cfg.Peers)
		r.Get("/ws", hh.ServeWS)
		r.Get("/v1/peers", hh.ListPeers)
		r.Get("/v1/peers/{id}/page", hh.GetPeerPage)
	}
	return r
}

// Run serves cfg until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("server: listening on %s", addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
