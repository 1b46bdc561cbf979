package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/statline/statline-backend/cmd/statline/check"
	"github.com/statline/statline-backend/cmd/statline/migrate"
	"github.com/statline/statline-backend/cmd/statline/project"
	"github.com/statline/statline-backend/cmd/statline/report"
	"github.com/statline/statline-backend/cmd/statline/seed"
	"github.com/statline/statline-backend/cmd/statline/serve"
	"github.com/statline/statline-backend/cmd/statline/token"
	"github.com/statline/statline-backend/cmd/statline/version"
	"github.com/statline/statline-backend/cmd/statline/worker"

	// Register the builtin system checks.
	_ "github.com/statline/statline-backend/internal/checks/all"
)

func main() {
	root := &cli.Command{
		Name:  "statline",
		Usage: "event telemetry backend",
		Commands: []*cli.Command{
			serve.GetCommand(),
			worker.GetCommand(),
			migrate.GetCommand(),
			check.GetCommand(),
			report.GetCommand(),
			seed.GetCommand(),
			project.GetCommand(),
			token.GetCommand(),
			version.GetCommand(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
