package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pevans/newsharvest/config"
)

func printSettingsUsage() {
	fmt.Println("newsharvest settings -- Show or change runtime settings")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsharvest settings <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  show       Show current settings")
	fmt.Println("  set        Change settings (--scheduler on|off, --interval 1h)")
	fmt.Println("  help       Show this help message")
}

func handleSettingsCommand(action string, args []string) {
	fs := flag.NewFlagSet("settings "+action, flag.ExitOnError)
	configPath := configFlag(fs)

	switch action {
	case "show":
		fs.Parse(args)
		a := openMeta(*configPath)
		defer a.Close()
		printSettings(a)
	case "set":
		scheduler := fs.String("scheduler", "", "Turn the scheduler on or off")
		interval := fs.String("interval", "", "Time between scheduled runs, e.g. 30m")
		fs.Parse(args)

		var update config.SettingsUpdate
		switch *scheduler {
		case "":
		case "on", "true":
			on := true
			update.SchedulerEnabled = &on
		case "off", "false":
			off := false
			update.SchedulerEnabled = &off
		default:
			fmt.Fprintf(os.Stderr, "Error: --scheduler must be 'on' or 'off'\n")
			os.Exit(1)
		}
		if *interval != "" {
			update.ScrapeInterval = interval
		}

		a := openMeta(*configPath)
		defer a.Close()
		if _, err := a.settings.UpdateSettings(context.Background(), update); err != nil {
			fatal(a, "failed to update settings: %v", err)
		}
		printSettings(a)
	case "help", "--help", "-h":
		printSettingsUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown settings command: %s\n\n", action)
		printSettingsUsage()
		os.Exit(1)
	}
}

func printSettings(a *app) {
	s, err := a.settings.GetSettings(context.Background())
	if err != nil {
		fatal(a, "failed to read settings: %v", err)
	}
	state := "off"
	if s.SchedulerEnabled {
		state = "on"
	}
	fmt.Printf("Scheduler: %s\n", state)
	fmt.Printf("Interval:  %s\n", s.ScrapeInterval)
}
