// Package worker runs the background job pool without an HTTP listener.
package worker

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/statline/statline-backend/cmd/statline/shared"
	"github.com/statline/statline-backend/internal/app"
)

func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Run the job worker pool",
		Flags: shared.GetFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return shared.WithApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				a.StartWorker()
				a.Log.Info("worker running",
					"concurrency", a.Cfg.Worker.Concurrency,
					"poll_interval", a.Cfg.Worker.PollInterval,
				)
				<-runCtx.Done()
				a.Log.Info("worker shutting down")
				return nil
			})
		},
	}
}
