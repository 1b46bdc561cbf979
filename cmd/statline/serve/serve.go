// Package serve runs the HTTP API together with the nightly scheduler.
package serve

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/statline/statline-backend/cmd/statline/shared"
	"github.com/statline/statline-backend/internal/app"
)

const withWorkerFlag = "with-worker"

func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the nightly scheduler",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  withWorkerFlag,
				Usage: "Also run the job worker in this process",
			},
		}, shared.GetFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return shared.WithApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				if err := a.StartScheduler(); err != nil {
					return err
				}
				if cmd.Bool(withWorkerFlag) {
					a.StartWorker()
				}
				return a.Run(runCtx)
			})
		},
	}
}
