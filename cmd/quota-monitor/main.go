// Package main provides the quota-monitor CLI application.
//
// Quota Monitor computes Claude Code quota usage from local JSONL
// usage logs: the active 5-hour billing window, weekly output-token
// quotas and the monthly cost quota, with optional live monitoring.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic.
func run() error {
	// Define global flags.
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "show version information")

	flag.Parse()

	if *showVersion {
		fmt.Printf("quota-monitor %s\n", version)
		return nil
	}

	// The bare invocation is the one-shot quota report.
	args := flag.Args()
	command := "quota"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "quota":
		return runQuotaCommand(*configPath, args)
	case "blocks":
		return runBlocksCommand(*configPath, args)
	case "stats":
		return runStatsCommand(*configPath, args)
	case "watch":
		return runWatchCommand(*configPath, args)
	case "list":
		return runListCommand(*configPath)
	case "config":
		return runConfigCommand(*configPath, args)
	case "help":
		return showUsage()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runQuotaCommand runs the quota command.
func runQuotaCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("quota", flag.ExitOnError)
	sessionID := fs.String("session", "", "treat this session ID as the current session")
	format := fs.String("format", "", "output format (simple, table, json)")
	compact := fs.Bool("compact", false, "compact output")
	noColor := fs.Bool("no-color", false, "disable colored output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &quotaCommand{
		sessionID:  *sessionID,
		format:     *format,
		compact:    *compact,
		noColor:    *noColor,
		configPath: configPath,
	}

	return cmd.Execute()
}

// runBlocksCommand runs the blocks command.
func runBlocksCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("blocks", flag.ExitOnError)
	format := fs.String("format", "", "output format (simple, table, json)")
	compact := fs.Bool("compact", false, "compact output")
	noColor := fs.Bool("no-color", false, "disable colored output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &blocksCommand{
		format:     *format,
		compact:    *compact,
		noColor:    *noColor,
		configPath: configPath,
	}

	return cmd.Execute()
}

// runStatsCommand runs the stats command.
func runStatsCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	sessionID := fs.String("session", "", "filter by session ID")
	family := fs.String("family", "", "filter by model family (opus, sonnet, haiku)")
	groupBy := fs.String("group-by", "", "group by dimensions (comma-separated: model,family,session,date,hour)")
	topN := fs.Int("top", 0, "show top N sessions by token usage")
	format := fs.String("format", "", "output format (text, json)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var dimensions []string
	if *groupBy != "" {
		dimensions = strings.Split(*groupBy, ",")
		for i, dim := range dimensions {
			dimensions[i] = strings.TrimSpace(dim)
		}
	}

	cmd := &statsCommand{
		sessionID:  *sessionID,
		family:     *family,
		groupBy:    dimensions,
		topN:       *topN,
		format:     *format,
		configPath: configPath,
	}

	return cmd.Execute()
}

// runWatchCommand runs the watch command.
func runWatchCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	sessionID := fs.String("session", "", "treat this session ID as the current session")
	refresh := fs.Duration("refresh", 0, "refresh interval (e.g., 1s, 500ms)")
	format := fs.String("format", "", "output format (simple, table)")
	history := fs.Bool("history", false, "keep history of updates (append mode)")
	noColor := fs.Bool("no-color", false, "disable colored output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &watchCommand{
		sessionID:   *sessionID,
		refresh:     *refresh,
		format:      *format,
		noColor:     *noColor,
		clearScreen: !*history,
		configPath:  configPath,
	}

	return cmd.Execute()
}

// runListCommand runs the list command.
func runListCommand(configPath string) error {
	cmd := &listCommand{
		configPath: configPath,
	}
	return cmd.Execute()
}

// runConfigCommand runs the config command.
func runConfigCommand(configPath string, args []string) error {
	cmd := &configCommand{
		configPath: configPath,
	}
	return cmd.Execute(args)
}

// formatModTime renders a discovery modification time for listings.
func formatModTime(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).Format("2006-01-02 15:04:05")
}

// showUsage displays usage information.
func showUsage() error {
	usage := `Quota Monitor - Claude Code quota usage from local logs

Usage:
  quota-monitor [flags] [command] [command flags]

Commands:
  quota       Compute and display the quota report (default)
  blocks      Display the 5-hour billing windows
  stats       Display usage statistics across sessions
  watch       Live monitoring of quota usage
  list        List all discovered usage logs
  config      Configuration management (show, path, init, validate)
  help        Show this help message

Global Flags:
  -config     Path to configuration file
  -version    Show version information

Quota Command Flags:
  -session    Treat this session ID as the current session
  -format     Output format (simple, table, json)
  -compact    Compact output
  -no-color   Disable colored output

Blocks Command Flags:
  -format     Output format (simple, table, json)
  -compact    Compact output
  -no-color   Disable colored output

Stats Command Flags:
  -session    Filter by session ID
  -family     Filter by model family (opus, sonnet, haiku)
  -group-by   Group by dimensions (comma-separated: model,family,session,date,hour)
  -top        Show top N sessions by token usage
  -format     Output format (text, json)

Watch Command Flags:
  -session    Treat this session ID as the current session
  -refresh    Refresh interval (default from config, e.g., 500ms, 2s)
  -format     Output format (simple, table)
  -history    Keep history of updates (append mode, default: false)
  -no-color   Disable colored output

Examples:
  # Show the quota report
  quota-monitor

  # Show the report as a table
  quota-monitor quota -format table

  # Show the report in JSON format
  quota-monitor quota -format json

  # Pin the session indicator to a specific session
  quota-monitor quota -session abc123...

  # Show billing windows
  quota-monitor blocks

  # Usage statistics grouped by model family
  quota-monitor stats -group-by family

  # Top 10 sessions by token usage
  quota-monitor stats -top 10

  # List discovered usage logs
  quota-monitor list

  # Live monitoring
  quota-monitor watch

  # Live monitoring with custom refresh
  quota-monitor watch -refresh 500ms

  # Configuration management
  quota-monitor config show
  quota-monitor config init
  quota-monitor config validate

Version: %s
`

	fmt.Printf(usage, version)
	return nil
}
