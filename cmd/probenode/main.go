// Command probenode samples the attached probe and keeps the host's copy of
// the node page up to date.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/probenode/internal/config"
	"github.com/matthewbaird/probenode/internal/eventbus"
	"github.com/matthewbaird/probenode/internal/journal"
	"github.com/matthewbaird/probenode/internal/node"
	"github.com/matthewbaird/probenode/internal/probe"
	"github.com/matthewbaird/probenode/internal/server"
	"github.com/matthewbaird/probenode/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("PROBE_CONFIG"))
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	interval, _ := cfg.Interval()
	nodeID := cfg.NodeID()

	bus, err := probe.OpenI2C(cfg.Bus.Device, uint16(cfg.Bus.Address))
	if err != nil {
		log.Fatalf("opening probe: %v", err)
	}
	defer bus.Close()

	var store journal.Store
	if cfg.Journal.DSN == "" {
		store = journal.NewMemoryStore()
	} else {
		sqlite, err := journal.OpenSQLite(ctx, cfg.Journal.DSN)
		if err != nil {
			log.Fatalf("opening journal: %v", err)
		}
		defer sqlite.Close()
		store = sqlite
	}

	events := eventbus.New(64)
	events.Subscribe("log", eventbus.NewLogConsumer())
	events.Subscribe("journal", eventbus.NewJournalConsumer(store))
	events.Start(ctx)
	defer events.Stop()

	sess, err := session.Dial(ctx, cfg.Host.URL, nodeID.String())
	if err != nil {
		log.Fatalf("connecting to host: %v", err)
	}
	defer sess.Close()
	log.Printf("connected to %s as node %s", cfg.Host.URL, nodeID)

	n := node.New(node.Config{
		NodeID:     nodeID,
		PageName:   cfg.Node.Name,
		Interval:   interval,
		WaterLevel: cfg.Sample.WaterLevel,
	}, sess, probe.NewReader(bus), node.WithPublisher(events))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		// The status server goes down with the loop.
		defer cancel()
		return n.Run(gctx)
	})
	g.Go(func() error {
		return server.Run(gctx, server.Config{Port: cfg.Status.Port, Journal: store})
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatalf("node error: %v", err)
	}
	log.Println("node stopped")
}
