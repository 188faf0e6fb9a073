package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielpatrickdp/swarm-governor/internal/bus"
	"github.com/danielpatrickdp/swarm-governor/internal/decision"
	"github.com/danielpatrickdp/swarm-governor/internal/drift"
	"github.com/danielpatrickdp/swarm-governor/internal/governance"
	"github.com/danielpatrickdp/swarm-governor/internal/graph"
	"github.com/danielpatrickdp/swarm-governor/internal/message"
	"github.com/danielpatrickdp/swarm-governor/internal/mitl"
	"github.com/danielpatrickdp/swarm-governor/internal/policy"
	"github.com/danielpatrickdp/swarm-governor/internal/router"
)

// #region main
func main() {
	dbPath := envOr("GOVERNOR_DB", "swarm_governor.db")
	natsURL := envOr("NATS_URL", "nats://localhost:4222")
	configPath := envOr("GOVERNANCE_CONFIG", "governance.yaml")
	mitlAddr := envOr("MITL_ADDR", ":8080")

	cfg, err := governance.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load governance config: %v", err)
	}

	store, err := graph.NewStore(dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	recorder, err := decision.NewRecorder(store.DB())
	if err != nil {
		log.Fatalf("failed to open decision log: %v", err)
	}
	driftSrc, err := drift.NewSQLSource(store.DB())
	if err != nil {
		log.Fatalf("failed to open drift source: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine := policy.NewEngine(ctx, cfg, recorder)

	conn, err := bus.Connect(natsURL, "swarm-governor")
	if err != nil {
		log.Fatalf("failed to connect to bus at %s: %v", natsURL, err)
	}
	defer conn.Close()
	if err := conn.EnsureStreams(); err != nil {
		log.Fatalf("failed to ensure streams: %v", err)
	}

	server := mitl.NewServer(
		mitl.NewMemoryStore(),
		func(a message.Action) error { return conn.Publish(bus.ActionSubject(a.ActionType), a) },
		func(r message.Rejection) error { return conn.Publish(bus.RejectionSubject(r.ProposalID), r) },
	)
	rt := router.NewRouter(engine, driftSrc, server, conn, cfg.Mode)

	httpSrv := &http.Server{Addr: mitlAddr, Handler: mitl.Handler(server)}
	go func() {
		log.Printf("[GOVERNOR] MITL server listening on %s", mitlAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("mitl server: %v", err)
		}
	}()

	log.Printf("[GOVERNOR] db=%s bus=%s mode=%s backend=%s", dbPath, natsURL, cfg.Mode, cfg.Policy.Backend)

	consumeErr := conn.Consume(ctx, bus.StreamProposals, bus.SubjectProposalPrefix+">", "governor-router", rt.Handler(ctx))
	if consumeErr != nil {
		log.Printf("[GOVERNOR] consumer stopped: %v", consumeErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[GOVERNOR] http shutdown: %v", err)
	}
	log.Printf("[GOVERNOR] stopped")
}

// #endregion main

// #region env
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion env
