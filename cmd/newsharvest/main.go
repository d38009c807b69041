package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pevans/newsharvest/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	args := os.Args[2:]

	switch subcommand {
	case "run":
		handleRun(args)
	case "serve":
		handleServe(args)
	case "targets":
		if len(args) < 1 {
			printTargetsUsage()
			os.Exit(1)
		}
		handleTargetsCommand(args[0], args[1:])
	case "contents":
		if len(args) < 1 {
			printContentsUsage()
			os.Exit(1)
		}
		handleContentsCommand(args[0], args[1:])
	case "settings":
		if len(args) < 1 {
			printSettingsUsage()
			os.Exit(1)
		}
		handleSettingsCommand(args[0], args[1:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("newsharvest -- Financial news harvester")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsharvest <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run        Run one collection pass and print the report")
	fmt.Println("  serve      Run the scheduler and the HTTP API")
	fmt.Println("  targets    Manage targets")
	fmt.Println("  contents   Browse stored content")
	fmt.Println("  settings   Show or change runtime settings")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  NEWSHARVEST_CONFIG       Path to config file (default: ~/.newsharvest/config.yaml)")
	fmt.Println("  NEWSHARVEST_ADDR         API listen address for serve")
	fmt.Println("  NEWSHARVEST_CONCURRENCY  Targets processed at once")
}

// configFlag registers -config on fs with the environment default.
func configFlag(fs *flag.FlagSet) *string {
	def, err := config.DefaultPath()
	if err != nil {
		def = "config.yaml"
	}
	return fs.String("config", getEnv("NEWSHARVEST_CONFIG", def), "Path to config file (NEWSHARVEST_CONFIG)")
}

// mustLoad loads the app or exits.
func mustLoad(configPath string) *app {
	a, err := loadApp(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return a
}

func fatal(a *app, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	if a != nil {
		a.Close()
	}
	os.Exit(1)
}
