package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/swarm-governor/internal/graph"
)

// #region main
func main() {
	dbPath := flag.String("db", envOr("GOVERNOR_DB", "swarm_governor.db"), "path to the governor database")
	scope := flag.String("scope", graph.DefaultScope, "scope to seed")
	node := flag.String("node", string(graph.CycleHead), "initial pipeline node")
	runID := flag.String("run", "", "run id (generated when empty)")
	flag.Parse()

	store, err := graph.NewStore(*dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	if st, ok, err := store.LoadState(*scope); err != nil {
		log.Fatalf("load state: %v", err)
	} else if ok {
		fmt.Printf("scope %s already seeded: node=%s epoch=%d run=%s\n", st.ScopeID, st.LastNode, st.Epoch, st.RunID)
		return
	}

	id := *runID
	if id == "" {
		id = uuid.NewString()
	}

	st, err := store.InitState(*scope, id, graph.Node(*node))
	if err != nil {
		log.Fatalf("init state: %v", err)
	}
	fmt.Printf("seeded scope %s: node=%s epoch=%d run=%s\n", st.ScopeID, st.LastNode, st.Epoch, st.RunID)
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
