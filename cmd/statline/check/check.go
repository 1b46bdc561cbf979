// Package check runs the system checks on demand and prints the findings.
package check

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/statline/statline-backend/cmd/statline/shared"
	"github.com/statline/statline-backend/internal/checks"
	"github.com/statline/statline-backend/internal/data/db"
	"github.com/statline/statline-backend/internal/platform/redisclient"
)

const tagFlag = "tag"
const databaseFlag = "database"
const listTagsFlag = "list-tags"

func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Run the system checks and print findings",
		Flags: append([]cli.Flag{
			&cli.StringSliceFlag{
				Name:  tagFlag,
				Usage: "Only run checks carrying this tag (repeatable)",
			},
			&cli.BoolFlag{
				Name:  databaseFlag,
				Usage: "Include database checks (opens a connection)",
			},
			&cli.BoolFlag{
				Name:  listTagsFlag,
				Usage: "List known check tags and exit",
			},
		}, shared.GetCheckFlags()...),
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	log, cfg, err := shared.Boot()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cmd.Bool(listTagsFlag) {
		for _, t := range checks.Default.Tags() {
			fmt.Println(t)
		}
		return nil
	}

	// Backends that cannot be reached become findings, not command errors.
	env := &checks.Env{Cfg: cfg, Log: log}
	if cfg.CacheEnabled() {
		rdb := redisclient.New(cfg)
		defer rdb.Close()
		env.Redis = rdb
	}
	if cmd.Bool(databaseFlag) {
		gdb, err := db.Open(cfg, log)
		if err != nil {
			log.Warn("could not open the database for checks", "error", err)
		} else {
			env.DB = gdb
			if sqlDB, derr := gdb.DB(); derr == nil {
				defer sqlDB.Close()
			}
		}
	}
	env.Deploy = cmd.Bool(shared.DeployFlag) || cfg.IsProduction()

	var tags []checks.Tag
	for _, t := range cmd.StringSlice(tagFlag) {
		tags = append(tags, checks.Tag(t))
	}

	res, err := checks.Default.Run(ctx, env, checks.RunOptions{
		Tags:            tags,
		Deploy:          env.Deploy,
		IncludeDatabase: cmd.Bool(databaseFlag),
		Silenced:        shared.Silenced(cmd, cfg),
	})
	if err != nil {
		return err
	}

	checks.FormatResult(os.Stdout, res, cmd.Bool(shared.VerboseFlag))

	failAt, err := checks.ParseLevel(cmd.String(shared.FailLevelFlag))
	if err != nil {
		return err
	}
	if res.HasSeriousAt(failAt) {
		return fmt.Errorf("system checks failed at %s or above", failAt)
	}
	return nil
}
