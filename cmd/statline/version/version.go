package version

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the statline version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Println(Version)
			return nil
		},
	}
}
