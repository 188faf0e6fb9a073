package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/swarm-governor/internal/decision"
	"github.com/danielpatrickdp/swarm-governor/internal/finality"
	"github.com/danielpatrickdp/swarm-governor/internal/graph"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to swarm_governor.db")
	scope := flag.String("scope", graph.DefaultScope, "scope to inspect")
	last := flag.Int("last", 20, "show N most recent decisions")
	since := flag.Duration("since", 24*time.Hour, "decision window")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/swarm_governor.db [--scope id] [--last N] [--since 24h] [--json]")
		os.Exit(2)
	}

	store, err := graph.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := run(store, *scope, *last, *since, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region report

type report struct {
	State     *graph.GraphState  `json:"state,omitempty"`
	Finality  *finality.Decision `json:"finality_decision,omitempty"`
	Decisions []decision.Record  `json:"decisions"`
}

func run(store *graph.Store, scope string, last int, since time.Duration, jsonOut bool) error {
	var rep report

	st, ok, err := store.LoadState(scope)
	if err != nil {
		return err
	}
	if ok {
		rep.State = &st
	}

	decisions, err := finality.NewDecisionStore(store.DB())
	if err != nil {
		return err
	}
	if d, ok, err := decisions.Latest(scope); err != nil {
		return err
	} else if ok {
		rep.Finality = &d
	}

	recorder, err := decision.NewRecorder(store.DB())
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	records, err := recorder.Query(scope, now.Add(-since), now.Add(time.Minute))
	if err != nil {
		return err
	}
	if len(records) > last {
		records = records[:last]
	}
	rep.Decisions = records

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	printReport(rep, scope)
	return nil
}

func printReport(rep report, scope string) {
	if rep.State == nil {
		fmt.Printf("scope %s: not seeded\n", scope)
	} else {
		fmt.Printf("scope %s: node=%s epoch=%d run=%s updated=%s\n",
			rep.State.ScopeID, rep.State.LastNode, rep.State.Epoch, rep.State.RunID,
			rep.State.UpdatedAt.Format(time.RFC3339))
	}
	if rep.Finality != nil {
		fmt.Printf("finality: option=%s days=%d at=%s\n",
			rep.Finality.Option, rep.Finality.Days, rep.Finality.CreatedAt.Format(time.RFC3339))
	}

	if len(rep.Decisions) == 0 {
		fmt.Println("no decisions in window")
		return
	}
	fmt.Printf("%-38s %-6s %-8s %-24s %s\n", "DECISION", "RESULT", "BINDING", "CREATED", "REASON")
	for _, d := range rep.Decisions {
		fmt.Printf("%-38s %-6s %-8s %-24s %s\n",
			d.DecisionID, d.Result, d.Binding, d.CreatedAt.Format(time.RFC3339), d.Reason)
	}
}

// #endregion report
