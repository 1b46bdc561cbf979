// Package token manages dashboard API tokens from the command line.
package token

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/statline/statline-backend/cmd/statline/shared"
	"github.com/statline/statline-backend/internal/app"
)

const projectFlag = "project"
const nameFlag = "name"
const idFlag = "id"

func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Manage dashboard API tokens",
		Commands: []*cli.Command{
			createCommand(),
			listCommand(),
			revokeCommand(),
		},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Mint a token and print the signed JWT",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: projectFlag, Usage: "Project slug", Required: true},
			&cli.StringFlag{Name: nameFlag, Usage: "Token name", Required: true},
		}, shared.GetFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return shared.WithApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Services.Project.GetProjectBySlug(ctx, cmd.String(projectFlag))
				if err != nil {
					return err
				}
				jwt, rec, err := a.Services.Auth.MintToken(ctx, p.ID, cmd.String(nameFlag))
				if err != nil {
					return err
				}
				fmt.Printf("Token %s (%s)\n", rec.Name, rec.ID)
				fmt.Printf("JWT (shown once): %s\n", jwt)
				return nil
			})
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List a project's tokens",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: projectFlag, Usage: "Project slug", Required: true},
		}, shared.GetFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return shared.WithApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Services.Project.GetProjectBySlug(ctx, cmd.String(projectFlag))
				if err != nil {
					return err
				}
				recs, err := a.Services.Auth.ListTokens(ctx, p.ID)
				if err != nil {
					return err
				}
				for _, r := range recs {
					fmt.Printf("%-36s %-20s %s\n", r.ID, r.Name, r.CreatedAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
}

func revokeCommand() *cli.Command {
	return &cli.Command{
		Name:  "revoke",
		Usage: "Revoke a token",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: projectFlag, Usage: "Project slug", Required: true},
			&cli.StringFlag{Name: idFlag, Usage: "Token ID", Required: true},
		}, shared.GetFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			tokenID, err := uuid.Parse(cmd.String(idFlag))
			if err != nil {
				return fmt.Errorf("bad --id: %w", err)
			}
			return shared.WithApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Services.Project.GetProjectBySlug(ctx, cmd.String(projectFlag))
				if err != nil {
					return err
				}
				if err := a.Services.Auth.RevokeToken(ctx, p.ID, tokenID); err != nil {
					return err
				}
				fmt.Printf("Revoked token %s\n", tokenID)
				return nil
			})
		},
	}
}
