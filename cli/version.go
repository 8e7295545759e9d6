package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// VersionCommand reports the CLI's version and the commit it was built
// from (set via ldflags).
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "dispenser %s (commit: %s)\n", Version, commit)
			return nil
		},
	}
}
