package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielpatrickdp/swarm-governor/internal/bus"
	"github.com/danielpatrickdp/swarm-governor/internal/executor"
	"github.com/danielpatrickdp/swarm-governor/internal/finality"
	"github.com/danielpatrickdp/swarm-governor/internal/governance"
	"github.com/danielpatrickdp/swarm-governor/internal/graph"
)

// #region main
func main() {
	dbPath := envOr("GOVERNOR_DB", "swarm_governor.db")
	natsURL := envOr("NATS_URL", "nats://localhost:4222")
	configPath := envOr("GOVERNANCE_CONFIG", "governance.yaml")

	cfg, err := governance.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load governance config: %v", err)
	}

	store, err := graph.NewStore(dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	source, err := finality.NewSQLSource(store.DB())
	if err != nil {
		log.Fatalf("failed to open finality source: %v", err)
	}
	decisions, err := finality.NewDecisionStore(store.DB())
	if err != nil {
		log.Fatalf("failed to open finality decisions: %v", err)
	}
	evaluator := finality.NewEvaluator(cfg.Finality, source, decisions)

	conn, err := bus.Connect(natsURL, "swarm-executor")
	if err != nil {
		log.Fatalf("failed to connect to bus at %s: %v", natsURL, err)
	}
	defer conn.Close()
	if err := conn.EnsureStreams(); err != nil {
		log.Fatalf("failed to ensure streams: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ex := executor.NewExecutor(store, evaluator, decisions, conn)

	log.Printf("[EXECUTOR] db=%s bus=%s", dbPath, natsURL)
	if err := conn.Consume(ctx, bus.StreamActions, bus.SubjectActionPrefix+">", "governor-executor", ex.Handler(ctx)); err != nil {
		log.Printf("[EXECUTOR] consumer stopped: %v", err)
	}
	log.Printf("[EXECUTOR] stopped")
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
