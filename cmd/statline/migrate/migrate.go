// Package migrate creates or updates the database schema.
package migrate

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/statline/statline-backend/cmd/statline/shared"
	"github.com/statline/statline-backend/internal/checks"
	"github.com/statline/statline-backend/internal/data/db"
)

func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the database schema",
		Flags: shared.GetFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log, cfg, err := shared.Boot()
			if err != nil {
				return err
			}
			defer log.Sync()

			gdb, err := db.Open(cfg, log)
			if err != nil {
				return err
			}

			// Database checks stay out of the gate: the schema this command
			// creates may not exist yet.
			env := &checks.Env{Cfg: cfg, DB: gdb, Log: log}
			if err := shared.Gate(ctx, cmd, env, false); err != nil {
				return err
			}

			if cfg.IsPostgres() {
				if err := db.EnsureExtensions(gdb); err != nil {
					return err
				}
			}
			if err := db.AutoMigrateAll(gdb); err != nil {
				return fmt.Errorf("automigrate: %w", err)
			}
			log.Info("migration complete", "tables", len(db.TableNames()))
			return nil
		},
	}
}
