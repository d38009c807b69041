package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/pevans/newsharvest/filter"
	"github.com/pevans/newsharvest/storage"
)

func printContentsUsage() {
	fmt.Println("newsharvest contents -- Browse stored content")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsharvest contents <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  list       List stored content, newest first")
	fmt.Println("  show       Show one item")
	fmt.Println("  help       Show this help message")
}

func handleContentsCommand(action string, args []string) {
	fs := flag.NewFlagSet("contents "+action, flag.ExitOnError)
	configPath := configFlag(fs)

	switch action {
	case "list":
		limit := fs.Int("limit", 20, "Items to show")
		offset := fs.Int("offset", 0, "Items to skip")
		targetName := fs.String("target", "", "Only items from this target")
		format := fs.String("format", "table", "Output format: table or json")
		fs.Parse(args)

		a := openContents(*configPath)
		defer a.Close()
		handleContentsList(a, storage.ListOptions{Target: *targetName, Limit: *limit, Offset: *offset}, *format)
	case "show":
		fs.Parse(args)
		a := openContents(*configPath)
		defer a.Close()
		handleContentsShow(a, fs.Args())
	case "help", "--help", "-h":
		printContentsUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown contents command: %s\n\n", action)
		printContentsUsage()
		os.Exit(1)
	}
}

func openContents(configPath string) *app {
	a := mustLoad(configPath)
	if err := a.openContent(); err != nil {
		fatal(a, "%v", err)
	}
	return a
}

func handleContentsList(a *app, opts storage.ListOptions, format string) {
	ctx := context.Background()
	items, err := a.store.List(ctx, opts)
	if err != nil {
		fatal(a, "failed to list content: %v", err)
	}
	total, err := a.store.Count(ctx)
	if err != nil {
		fatal(a, "failed to count content: %v", err)
	}

	if format == "json" {
		printJSON(items)
		return
	}
	printContentTable(items, total, opts.Offset)
}

func handleContentsShow(a *app, args []string) {
	if len(args) < 1 {
		fatal(a, "content ID is required")
	}
	item, err := a.store.Get(context.Background(), args[0])
	if err != nil {
		fatal(a, "%v", err)
	}

	fmt.Println(item.Title)
	fmt.Println()
	fmt.Printf("Target: %s\n", item.TargetName)
	fmt.Printf("URL: %s\n", item.URL)
	if item.Author != "" {
		fmt.Printf("Author: %s\n", item.Author)
	}
	if item.PublishedAt != nil {
		fmt.Printf("Published: %s\n", item.PublishedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("Scraped: %s\n", item.ScrapedAt.Format("2006-01-02 15:04"))
	fmt.Printf("Relevance: %d | Quality: %d | Strategy: %s\n", item.RelevanceScore, item.QualityScore, item.Strategy)
	fmt.Println()

	body := item.Markdown
	if body == "" {
		body = item.BodyText
	}
	fmt.Println(body)
}

// printContentTable prints items in human-readable table format
func printContentTable(items []filter.ScoredContent, total, offset int) {
	if len(items) == 0 {
		fmt.Println("No items to display.")
		return
	}

	fmt.Printf("Showing %d-%d of %d items\n\n", offset+1, offset+len(items), total)

	for _, item := range items {
		fmt.Printf("%s\n", truncate(item.Title, 70))
		fmt.Printf("   %s | Scraped: %s | Relevance: %d | Quality: %d\n",
			item.TargetName,
			item.ScrapedAt.Format("2006-01-02 15:04"),
			item.RelevanceScore,
			item.QualityScore,
		)
		fmt.Printf("   %s\n", truncate(item.BodyText, 150))
		fmt.Printf("   URL: %s\n", item.URL)
		fmt.Printf("   ID: %s\n", item.ID)
		fmt.Println()
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
}
