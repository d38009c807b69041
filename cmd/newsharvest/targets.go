package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pevans/newsharvest/target"
)

func printTargetsUsage() {
	fmt.Println("newsharvest targets -- Manage targets")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsharvest targets <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  list       List configured and stored targets")
	fmt.Println("  add        Add a target")
	fmt.Println("  enable     Enable a stored target")
	fmt.Println("  disable    Disable a stored target")
	fmt.Println("  delete     Delete a stored target")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Targets from the config file are read-only here.")
}

func handleTargetsCommand(action string, args []string) {
	if action == "help" || action == "--help" || action == "-h" {
		printTargetsUsage()
		return
	}

	fs := flag.NewFlagSet("targets "+action, flag.ExitOnError)
	configPath := configFlag(fs)

	switch action {
	case "list":
		fs.Parse(args)
		a := openMeta(*configPath)
		defer a.Close()
		handleTargetsList(a)
	case "add":
		handleTargetsAdd(fs, configPath, args)
	case "enable", "disable":
		fs.Parse(args)
		a := openMeta(*configPath)
		defer a.Close()
		handleTargetsSetEnabled(a, fs.Args(), action == "enable")
	case "delete":
		fs.Parse(args)
		a := openMeta(*configPath)
		defer a.Close()
		handleTargetsDelete(a, fs.Args())
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown targets command: %s\n\n", action)
		printTargetsUsage()
		os.Exit(1)
	}
}

func openMeta(configPath string) *app {
	a := mustLoad(configPath)
	if err := a.openMetadata(); err != nil {
		fatal(a, "%v", err)
	}
	return a
}

func handleTargetsList(a *app) {
	stored, err := a.targets.ListTargets()
	if err != nil {
		fatal(a, "failed to list targets: %v", err)
	}

	if len(a.cfg.Targets) == 0 && len(stored) == 0 {
		fmt.Println("No targets configured.")
		return
	}

	fmt.Printf("%-24s %-7s %-8s %-7s %s\n", "NAME", "ORIGIN", "ENABLED", "MODE", "URL")
	fmt.Println("----------------------------------------------------------------------------------------------------")

	row := func(t target.Target, origin string) {
		t = t.WithDefaults()
		enabled := "no"
		if t.Enabled {
			enabled = "yes"
		}
		fmt.Printf("%-24s %-7s %-8s %-7s %s\n",
			truncate(t.Name, 24), origin, enabled, t.Mode, truncate(t.BaseURL, 60))
	}
	for _, t := range a.cfg.Targets {
		row(t, "file")
	}
	for _, st := range stored {
		row(st.Target, "store")
	}
}

func handleTargetsAdd(fs *flag.FlagSet, configPath *string, args []string) {
	name := fs.String("name", "", "Target name")
	baseURL := fs.String("url", "", "Base URL")
	mode := fs.String("mode", string(target.ModeDirect), "Mode: direct, list or feed")
	strategy := fs.String("fetch", string(target.StrategyHTTP), "Fetch strategy: http or browser")
	hints := fs.String("hints", "", "Comma-separated selector hints")
	links := fs.String("links", "", "Comma-separated link selectors (list mode)")
	feedURL := fs.String("feed-url", "", "Feed URL (feed mode, default: base URL)")
	maxArticles := fs.Int("max", 0, "Articles to follow per run (list and feed mode)")
	timeout := fs.Duration("timeout", 0, "Per-request timeout for this target (default: fetch.timeout)")
	maxDelay := fs.Duration("max-delay", 0, "Upper bound on this target's request spacing (default: fetch.max_delay)")
	disabled := fs.Bool("disabled", false, "Add the target disabled")
	fs.Parse(args)

	if *name == "" {
		fmt.Fprintf(os.Stderr, "Error: --name is required\n")
		fs.Usage()
		os.Exit(1)
	}
	if *baseURL == "" {
		fmt.Fprintf(os.Stderr, "Error: --url is required\n")
		fs.Usage()
		os.Exit(1)
	}

	a := openMeta(*configPath)
	defer a.Close()

	for _, t := range a.cfg.Targets {
		if t.Name == *name {
			fatal(a, "target %q is already defined in the config file", *name)
		}
	}

	st, err := a.targets.CreateTarget(target.Target{
		Name:          *name,
		BaseURL:       *baseURL,
		Enabled:       !*disabled,
		SelectorHints: splitList(*hints),
		FetchStrategy: target.Strategy(*strategy),
		Mode:          target.Mode(*mode),
		LinkSelectors: splitList(*links),
		FeedURL:       *feedURL,
		MaxArticles:   *maxArticles,
		Timeout:       target.Duration(*timeout),
		MaxDelay:      target.Duration(*maxDelay),
	})
	if err != nil {
		fatal(a, "failed to create target: %v", err)
	}

	fmt.Printf("✓ Created target: %s\n", st.Name)
	fmt.Printf("  URL: %s\n", st.BaseURL)
	fmt.Printf("  Mode: %s\n", st.Mode)
	fmt.Printf("  Fetch: %s\n", st.FetchStrategy)
	fmt.Printf("  Enabled: %t\n", st.Enabled)
}

func handleTargetsSetEnabled(a *app, args []string, enabled bool) {
	if len(args) < 1 {
		fatal(a, "target name is required")
	}
	if err := a.targets.SetEnabled(args[0], enabled); err != nil {
		fatal(a, "failed to update target: %v", err)
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("✓ Target %s %s\n", args[0], state)
}

func handleTargetsDelete(a *app, args []string) {
	if len(args) < 1 {
		fatal(a, "target name is required")
	}
	if err := a.targets.DeleteTarget(args[0]); err != nil {
		fatal(a, "failed to delete target: %v", err)
	}
	fmt.Printf("✓ Deleted target: %s\n", args[0])
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}
