package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/agency-engine/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to scenario fixture JSON")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/scenario.json")
		os.Exit(2)
	}

	f, err := replay.LoadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		os.Exit(2)
	}

	results, summary, err := replay.Run(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(2)
	}

	os.Exit(printComparison(f, results, summary))
}

// #endregion main

// #region output

// printComparison outputs a per-step comparison table and returns the exit
// code: 0 when every expectation matched, 1 otherwise.
func printComparison(f *replay.Fixture, results []replay.Result, summary replay.Summary) int {
	if f.Description != "" {
		fmt.Println(f.Description)
		fmt.Println()
	}

	fmt.Printf("%-16s| %-22s| %-22s| %s\n", "Step", "Expected", "Replayed", "Match")
	fmt.Printf("%-16s+%-23s+%-23s+%s\n",
		"----------------", "-----------------------", "-----------------------", "------")

	for _, r := range results {
		expected := r.Expected.Status
		if r.Expected.DenyCode != "" {
			expected += "/" + r.Expected.DenyCode
		}
		if expected == "" {
			expected = "—"
		}
		got := string(r.Status)
		if r.DenyCode != "" {
			got += "/" + string(r.DenyCode)
		}
		match := "OK"
		if !r.Match {
			match = "DIFF"
		}
		fmt.Printf("%-16s| %-22s| %-22s| %s\n", r.StepID, expected, got, match)
	}

	fmt.Printf("\nSummary: %d steps, %d completed, %d denied, %d dry-run, %d failed, %d rolled back, %d diverge\n",
		summary.TotalSteps, summary.Completed, summary.Denied, summary.DryRuns,
		summary.Failed, summary.RolledBack, summary.Mismatches)
	fmt.Printf("Final state: trust=%.3f warmth=%.3f tier=%s\n",
		summary.FinalState.Trust, summary.FinalState.Warmth, summary.FinalTier)

	if summary.Mismatches > 0 {
		return 1
	}
	return 0
}

// #endregion output
