// Package report lists and runs aggregate reports from the command line.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/statline/statline-backend/cmd/statline/shared"
	"github.com/statline/statline-backend/internal/app"
)

const projectFlag = "project"
const fromFlag = "from"
const toFlag = "to"

func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Work with the aggregate report catalog",
		Commands: []*cli.Command{
			listCommand(),
			runCommand(),
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the report catalog",
		Flags: shared.GetFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return shared.WithApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				infos, err := a.Services.Report.ListReports(ctx)
				if err != nil {
					return err
				}
				for _, info := range infos {
					fmt.Printf("%-24s %s\n", info.Name, info.Title)
				}
				return nil
			})
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run one report and print the result as JSON",
		ArgsUsage: "<report>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     projectFlag,
				Usage:    "Project slug",
				Required: true,
			},
			&cli.StringFlag{
				Name:  fromFlag,
				Usage: "Window start (RFC3339), default 24h ago",
			},
			&cli.StringFlag{
				Name:  toFlag,
				Usage: "Window end (RFC3339), default now",
			},
		}, shared.GetFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				return fmt.Errorf("usage: statline report run <report> --project <slug>")
			}
			return shared.WithApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Services.Project.GetProjectBySlug(ctx, cmd.String(projectFlag))
				if err != nil {
					return err
				}
				from, to, err := window(cmd)
				if err != nil {
					return err
				}
				res, err := a.Services.Report.RunReport(ctx, p.ID, name, from, to)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			})
		},
	}
}

func window(cmd *cli.Command) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if s := cmd.String(fromFlag); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad --from: %w", err)
		}
		from = t
	}
	if s := cmd.String(toFlag); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad --to: %w", err)
		}
		to = t
	}
	return from, to, nil
}
