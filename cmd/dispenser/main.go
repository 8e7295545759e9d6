// Package main provides the dispenser CLI entrypoint.
//
// Usage:
//
//	dispenser serve --config dispenser.yaml [--tui]
//	dispenser version
package main

import (
	"errors"
	"fmt"
	"os"

	cliapp "github.com/urfave/cli/v2"

	"github.com/justapithecus/dispenser/cli"
)

// commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cliapp.App{
		Name:           "dispenser",
		Usage:          "In-process event buffering and fan-out engine",
		Version:        fmt.Sprintf("%s (commit: %s)", cli.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cliapp.Command{
			cli.ServeCommand(),
			cli.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func exitErrHandler(_ *cliapp.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cliapp.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
