// Command probehost accepts probe node sessions and mirrors each node's page.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/probenode/internal/server"
	"github.com/matthewbaird/probenode/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port := 1930
	if p := os.Getenv("PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	// Nodes send at least one update every sample interval.
	peers := session.NewManager(5 * time.Minute)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				peers.Cleanup()
			case <-gctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		return server.Run(gctx, server.Config{Port: port, Peers: peers})
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
