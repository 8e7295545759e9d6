// Package cli provides the dispenser CLI's commands.
package cli

import "github.com/urfave/cli/v2"

// Version is the canonical project version.
const Version = "0.1.0"

var (
	// ConfigFlag selects the dispenser.yaml config file.
	ConfigFlag = &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Usage:    "Path to dispenser.yaml",
		Required: true,
	}

	// NameFlag names the dispatcher instance for logging and metrics.
	NameFlag = &cli.StringFlag{
		Name:  "name",
		Usage: "Dispatcher instance name (for logging/metrics)",
		Value: "dispenser",
	}

	// TUIFlag enables the live Bubble Tea stats dashboard.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Show a live stats dashboard (log lines still go to stderr)",
	}
)
