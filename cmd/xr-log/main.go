// Command xr-log is a tool for viewing and analyzing XR session log files.
//
// Log files are created by the session event logging infrastructure when
// running with a file logger attached (e.g. xr-sim -log-file).
//
// Usage:
//
//	xr-log <command> [flags] <file.xrlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	xr-log view session.xrlog
//
//	# View only detection events
//	xr-log view -category detection session.xrlog
//
//	# View one subsystem's events for one session
//	xr-log view -subsystem plane-detection -session 4f7c session.xrlog
//
//	# Show statistics
//	xr-log stats session.xrlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xrhost-protocol/xrhost-go/cmd/xr-log/commands"
)

const usage = `xr-log - XR Session Log Analyzer

Usage:
  xr-log <command> [flags] <file.xrlog>

Commands:
  view     View log file in human-readable format
  stats    Show statistics about the log file

Use "xr-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `xr-log view - View log file in human-readable format

Usage:
  xr-log view [flags] <file.xrlog>

Flags:
`)
		fs.PrintDefaults()
	}

	category := fs.String("category", "", "Filter by category (state, detection, frame, error)")
	sessionID := fs.String("session", "", "Filter by session ID")
	subsystem := fs.String("subsystem", "", "Filter by subsystem feature name")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	var filter commands.ViewFilter
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Category = &c
	}
	filter.SessionID = *sessionID
	filter.Subsystem = *subsystem

	if err := commands.View(os.Stdout, fs.Arg(0), filter); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `xr-log stats - Show statistics about the log file

Usage:
  xr-log stats <file.xrlog>
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.Stats(os.Stdout, fs.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
