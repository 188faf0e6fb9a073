package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/swarm-governor/internal/drift"
	"github.com/danielpatrickdp/swarm-governor/internal/graph"
	"github.com/danielpatrickdp/swarm-governor/internal/replay"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to swarm_governor.db")
	scope := flag.String("scope", graph.DefaultScope, "scope to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--scope id]")
		os.Exit(2)
	}

	if err := run(*dbPath, *scope, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

// run snapshots the scope's current drift state into a replay fixture
// covering every pipeline transition. Expected results are prefilled as
// "allow"; the operator edits the ones the policy should block.
func run(dbPath, scope, outPath string) error {
	store, err := graph.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	source, err := drift.NewSQLSource(store.DB())
	if err != nil {
		return fmt.Errorf("open drift source: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ds, err := source.Current(ctx, scope)
	if err != nil {
		return fmt.Errorf("current drift: %w", err)
	}

	fixture := buildFixture(scope, ds)
	if err := replay.WriteFixture(fixture, outPath); err != nil {
		return err
	}
	fmt.Printf("wrote fixture to %s (%d cases, drift=%s)\n", outPath, len(fixture.Cases), ds.Level)
	return nil
}

func buildFixture(scope string, ds drift.State) *replay.Fixture {
	nodes := graph.Nodes()
	cases := make([]replay.FixtureCase, 0, len(nodes))
	expected := make([]replay.FixtureExpectedResult, 0, len(nodes))

	for _, from := range nodes {
		to, _ := graph.Next(from)
		name := fmt.Sprintf("%s_to_%s", from, to)
		cases = append(cases, replay.FixtureCase{
			Name:       name,
			ScopeID:    scope,
			From:       string(from),
			To:         string(to),
			DriftLevel: ds.Level,
			DriftTypes: ds.Types,
		})
		expected = append(expected, replay.FixtureExpectedResult{
			Name:   name,
			Result: "allow",
		})
	}

	return &replay.Fixture{
		Description:     fmt.Sprintf("exported from scope %s under %s drift", scope, ds.Level),
		Cases:           cases,
		ExpectedResults: expected,
	}
}

// #endregion export
