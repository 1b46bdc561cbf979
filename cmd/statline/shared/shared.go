// Package shared holds the flag names and the pre-command check gate that
// every statline command uses.
package shared

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/statline/statline-backend/cmd/statline/version"
	"github.com/statline/statline-backend/internal/app"
	"github.com/statline/statline-backend/internal/checks"
	"github.com/statline/statline-backend/internal/config"
	"github.com/statline/statline-backend/internal/platform/envutil"
	"github.com/statline/statline-backend/internal/platform/logger"
)

// SkipChecksFlag bypasses the system checks that run before the command.
const SkipChecksFlag = "skip-checks"

// DeployFlag includes deploy-only checks regardless of mode.
const DeployFlag = "deploy"

// FailLevelFlag is the lowest finding level that aborts the command.
const FailLevelFlag = "fail-level"

// SilenceFlag silences check IDs for this run, on top of the configured set.
const SilenceFlag = "silence"

// VerboseFlag also prints silenced findings.
const VerboseFlag = "verbose"

// GetFlags returns the gate flags common to every command that runs the
// checks before its own work.
func GetFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.BoolFlag{
			Name:  SkipChecksFlag,
			Usage: "Skip the system checks that normally run first",
		},
	}, GetCheckFlags()...)
}

// GetCheckFlags returns the flags shaping a check run. The check command
// uses these without the skip flag.
func GetCheckFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  DeployFlag,
			Usage: "Include deploy-only checks (implied when APP_MODE=production)",
		},
		&cli.StringFlag{
			Name:  FailLevelFlag,
			Usage: "Lowest finding level that aborts the command (debug|info|warning|error|critical)",
			Value: "error",
		},
		&cli.StringSliceFlag{
			Name:  SilenceFlag,
			Usage: "Check ID to silence for this run (repeatable)",
		},
		&cli.BoolFlag{
			Name:    VerboseFlag,
			Aliases: []string{"v"},
			Usage:   "Also print silenced findings",
		},
	}
}

// Boot initializes the logger and configuration for commands that do not
// need the full app.
func Boot() (*logger.Logger, *config.Config, error) {
	mode := envutil.String("APP_MODE", "development")
	log, err := logger.New(mode)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Sync()
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return log, cfg, nil
}

// Silenced merges the configured silence list with --silence flags.
func Silenced(cmd *cli.Command, cfg *config.Config) []string {
	out := append([]string{}, cfg.Checks.Silenced...)
	return append(out, cmd.StringSlice(SilenceFlag)...)
}

// Gate runs the system checks and aborts the command when a visible finding
// reaches the fail level. Findings go to stderr so command output stays
// pipeable.
func Gate(ctx context.Context, cmd *cli.Command, env *checks.Env, includeDatabase bool) error {
	if cmd.Bool(SkipChecksFlag) {
		env.Log.Warn("system checks skipped", "command", cmd.Name)
		return nil
	}

	failAt, err := checks.ParseLevel(cmd.String(FailLevelFlag))
	if err != nil {
		return err
	}

	env.Deploy = cmd.Bool(DeployFlag) || env.Cfg.IsProduction()

	res, err := checks.Default.Run(ctx, env, checks.RunOptions{
		Deploy:          env.Deploy,
		IncludeDatabase: includeDatabase,
		Silenced:        Silenced(cmd, env.Cfg),
	})
	if err != nil {
		return err
	}
	if len(res.Visible) > 0 || cmd.Bool(VerboseFlag) {
		checks.FormatResult(os.Stderr, res, cmd.Bool(VerboseFlag))
	}
	if res.HasSeriousAt(failAt) {
		return fmt.Errorf("system checks failed at %s or above", failAt)
	}
	return nil
}

// WithApp builds the full app, runs the gate against its environment, then
// hands the app to fn. The app is torn down when fn returns.
func WithApp(ctx context.Context, cmd *cli.Command, fn func(context.Context, *app.App) error) error {
	a, err := app.New(version.Version)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := Gate(ctx, cmd, a.Checks, true); err != nil {
		return err
	}
	return fn(ctx, a)
}
