package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/danielpatrickdp/swarm-governor/internal/drift"
	"github.com/danielpatrickdp/swarm-governor/internal/graph"
	"github.com/danielpatrickdp/swarm-governor/internal/worker"
)

// #region main
// drift-probe pushes scope context through the facts worker and records the
// returned drift assessment, so the next policy evaluation sees it.
func main() {
	dbPath := flag.String("db", envOr("GOVERNOR_DB", "swarm_governor.db"), "path to the governor database")
	workerURL := flag.String("worker", envOr("WORKER_URL", "http://localhost:9090"), "facts worker base URL")
	scope := flag.String("scope", graph.DefaultScope, "scope to probe")
	contextText := flag.String("context", "", "context text (reads stdin when empty)")
	flag.Parse()

	text := *contextText
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("read stdin: %v", err)
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		fmt.Fprintln(os.Stderr, "usage: drift-probe [--db path] [--worker url] [--scope id] --context \"...\"")
		os.Exit(2)
	}

	store, err := graph.NewStore(*dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	source, err := drift.NewSQLSource(store.DB())
	if err != nil {
		log.Fatalf("open drift source: %v", err)
	}

	client := worker.NewClient(*workerURL)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	events := []worker.Event{{"text": text}}
	res, err := client.Extract(ctx, events, nil)
	if err != nil {
		log.Fatalf("extract: %v", err)
	}

	if err := source.Record(*scope, res.Drift); err != nil {
		log.Fatalf("record drift: %v", err)
	}

	fmt.Printf("scope %s: drift level=%s types=%v confidence=%.2f\n",
		*scope, res.Drift.Level, res.Drift.Types, res.Facts.Confidence)
	for _, c := range res.Facts.Claims {
		fmt.Printf("  claim: %s\n", c)
	}
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
