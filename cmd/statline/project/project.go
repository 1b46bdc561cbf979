// Package project provisions projects. Creating and deleting projects is an
// operator action; the HTTP API only ever operates on the authenticated
// project.
package project

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/statline/statline-backend/cmd/statline/shared"
	"github.com/statline/statline-backend/internal/app"
)

const nameFlag = "name"
const slugFlag = "slug"
const yesFlag = "yes"

func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "project",
		Usage: "Provision and inspect projects",
		Commands: []*cli.Command{
			createCommand(),
			listCommand(),
			rotateKeyCommand(),
			deleteCommand(),
		},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a project and print its ingest key",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: nameFlag, Usage: "Display name", Required: true},
			&cli.StringFlag{Name: slugFlag, Usage: "URL-safe identifier", Required: true},
		}, shared.GetFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return shared.WithApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				p, key, err := a.Services.Project.CreateProject(ctx, cmd.String(nameFlag), cmd.String(slugFlag))
				if err != nil {
					return err
				}
				fmt.Printf("Created project %s (%s)\n", p.Slug, p.ID)
				fmt.Printf("Ingest key (shown once): %s\n", key)
				return nil
			})
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List projects",
		Flags: shared.GetFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return shared.WithApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				ps, err := a.Services.Project.ListProjects(ctx)
				if err != nil {
					return err
				}
				for _, p := range ps {
					fmt.Printf("%-20s %-36s %s\n", p.Slug, p.ID, p.Name)
				}
				return nil
			})
		},
	}
}

func rotateKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "rotate-key",
		Usage: "Replace a project's ingest key",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: slugFlag, Usage: "Project slug", Required: true},
		}, shared.GetFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return shared.WithApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Services.Project.GetProjectBySlug(ctx, cmd.String(slugFlag))
				if err != nil {
					return err
				}
				key, err := a.Services.Project.RotateIngestKey(ctx, p.ID)
				if err != nil {
					return err
				}
				fmt.Printf("New ingest key for %s (shown once): %s\n", p.Slug, key)
				return nil
			})
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Soft-delete a project and its tokens",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: slugFlag, Usage: "Project slug", Required: true},
			&cli.BoolFlag{Name: yesFlag, Usage: "Confirm the deletion"},
		}, shared.GetFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if !cmd.Bool(yesFlag) {
				return fmt.Errorf("refusing to delete without --yes")
			}
			return shared.WithApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Services.Project.GetProjectBySlug(ctx, cmd.String(slugFlag))
				if err != nil {
					return err
				}
				if err := a.Services.Project.DeleteProject(ctx, p.ID); err != nil {
					return err
				}
				fmt.Printf("Deleted project %s\n", p.Slug)
				return nil
			})
		},
	}
}
