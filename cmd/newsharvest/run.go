package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/pevans/newsharvest/harvest"
	"github.com/pevans/newsharvest/target"
)

func handleRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := configFlag(fs)
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	concurrency := fs.Int("concurrency", getEnvInt("NEWSHARVEST_CONCURRENCY", 0), "Targets processed at once (NEWSHARVEST_CONCURRENCY)")
	fs.Parse(args)

	a := mustLoad(*configPath)
	defer a.Close()
	if *concurrency > 0 {
		a.cfg.Engine.Concurrency = *concurrency
	}

	if err := a.openMetadata(); err != nil {
		fatal(a, "%v", err)
	}
	if err := a.openContent(); err != nil {
		fatal(a, "%v", err)
	}
	runner, err := a.runner()
	if err != nil {
		fatal(a, "%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := runner.Run(ctx)
	if err != nil {
		if target.IsConfigError(err) {
			fatal(a, "configuration: %v", err)
		}
		fatal(a, "%v", err)
	}

	if err := a.store.SaveReport(context.WithoutCancel(ctx), report); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to store run report: %v\n", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(report)
		return
	}
	printReport(report)
}

// printReport prints a run report in human-readable table format
func printReport(r *harvest.RunReport) {
	fmt.Printf("Run %s (%s)\n", r.ID, r.Duration().Round(time.Millisecond))
	if r.Cancelled {
		fmt.Println("Run was cancelled before all targets finished.")
	}
	for _, e := range r.ConfigErrors {
		fmt.Printf("Config error: %s\n", e)
	}
	fmt.Println()

	if len(r.Targets) == 0 {
		fmt.Println("No enabled targets.")
		return
	}

	fmt.Printf("%-24s %9s %7s %9s %8s  %s\n", "TARGET", "ATTEMPTED", "FETCHED", "EXTRACTED", "ACCEPTED", "REJECTED")
	fmt.Println("--------------------------------------------------------------------------------------------")
	for _, tr := range r.Targets {
		name := truncate(tr.Target, 24)
		if tr.Aborted {
			name = truncate(tr.Target, 22) + " *"
		}
		fmt.Printf("%-24s %9d %7d %9d %8d  %s\n",
			name, tr.Attempted, tr.Fetched, tr.Extracted, tr.Accepted,
			formatReasons(tr.RejectedReasonCounts))
	}

	t := r.Totals()
	fmt.Println("--------------------------------------------------------------------------------------------")
	fmt.Printf("%-24s %9d %7d %9d %8d  %s\n", "TOTAL", t.Attempted, t.Fetched, t.Extracted, t.Accepted, formatReasons(t.Rejected))
}

func formatReasons[K ~string](counts map[K]int) string {
	keys := make([]string, 0, len(counts))
	for k, n := range counts {
		if n > 0 {
			keys = append(keys, string(k))
		}
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%d", k, counts[K(k)])
	}
	return out
}
