package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/swarm-governor/internal/decision"
	"github.com/danielpatrickdp/swarm-governor/internal/governance"
	"github.com/danielpatrickdp/swarm-governor/internal/policy"
	"github.com/danielpatrickdp/swarm-governor/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to replay fixture JSON")
	configPath := flag.String("config", "", "path to governance config YAML")
	flag.Parse()

	if *fixturePath == "" || *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json --config path/to/governance.yaml")
		os.Exit(2)
	}

	os.Exit(run(*fixturePath, *configPath))
}

// #endregion main

// #region run

func run(fixturePath, configPath string) int {
	f, err := replay.LoadFixture(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	cfg, err := governance.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 2
	}

	ctx := context.Background()
	auditor := &replay.MemoryAuditor{}
	engine := policy.NewEngine(ctx, cfg, auditor)

	results, err := replay.Replay(ctx, engine, f.Cases)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	return printComparison(results, f.ExpectedResults)
}

// #endregion run

// #region output

// printComparison outputs a comparison table and returns the exit code.
func printComparison(results []replay.Result, expected []replay.FixtureExpectedResult) int {
	wantByName := make(map[string]string, len(expected))
	for _, e := range expected {
		wantByName[e.Name] = e.Result
	}

	fmt.Printf("%-28s| %-8s| %-8s| %s\n", "Case", "Expected", "Replayed", "Match")
	fmt.Printf("%-28s+%-9s+%-9s+%s\n",
		"----------------------------", "---------", "---------", "------")

	for _, r := range results {
		got := decision.ResultDeny
		if r.Allowed {
			got = decision.ResultAllow
		}
		want, ok := wantByName[r.Name]
		match := "OK"
		if !ok {
			want = "-"
			match = "DIFF"
		} else if want != got {
			match = "DIFF"
		}
		fmt.Printf("%-28s| %-8s| %-8s| %s\n", r.Name, want, got, match)
	}

	s := replay.Summarize(results, expected)
	fmt.Printf("\nSummary: %d total, %d allow, %d deny, %d diverge\n",
		s.Total, s.Allows, s.Denies, s.Mismatches)

	if s.Mismatches > 0 {
		return 1
	}
	return 0
}

// #endregion output
