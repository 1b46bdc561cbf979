// Package conf registers checks over configuration values that parse as
// strings but still break at runtime: unknown database drivers, cron specs
// the scheduler cannot parse, worker pools sized to zero.
package conf

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/statline/statline-backend/internal/checks"
	"github.com/statline/statline-backend/internal/config"
)

func init() {
	checks.MustRegister("config.db_driver", CheckDBDriver, checks.TagConfig)
	checks.MustRegister("config.rollup_cron", CheckRollupCron, checks.TagConfig)
	checks.MustRegister("config.worker_pool", CheckWorkerPool, checks.TagConfig)
}

// CheckDBDriver flags DB_DRIVER values db.Open does not understand.
func CheckDBDriver(_ context.Context, env *checks.Env) []checks.Message {
	driver := strings.ToLower(strings.TrimSpace(env.Cfg.DB.Driver))
	for _, known := range config.SupportedDrivers() {
		if driver == known {
			return nil
		}
	}
	return []checks.Message{
		checks.Error("config.E001",
			fmt.Sprintf("DB_DRIVER %q is not supported.", env.Cfg.DB.Driver)).
			WithHint(fmt.Sprintf("Supported drivers: %s.", strings.Join(config.SupportedDrivers(), ", "))),
	}
}

// CheckRollupCron parses ROLLUP_CRON with the same parser the scheduler
// uses, so a bad spec fails here instead of at worker startup.
func CheckRollupCron(_ context.Context, env *checks.Env) []checks.Message {
	spec := env.Cfg.Rollup.CronSpec
	if strings.TrimSpace(spec) == "" {
		return []checks.Message{
			checks.Error("config.E002", "ROLLUP_CRON is empty.").
				WithHint("The worker schedules daily rollups from this spec. Use standard five-field cron syntax."),
		}
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return []checks.Message{
			checks.Error("config.E002",
				fmt.Sprintf("ROLLUP_CRON %q does not parse: %v.", spec, err)).
				WithHint("Use standard five-field cron syntax, for example \"15 0 * * *\"."),
		}
	}
	return nil
}

// CheckWorkerPool flags worker pools that cannot make progress.
func CheckWorkerPool(_ context.Context, env *checks.Env) []checks.Message {
	var msgs []checks.Message
	if env.Cfg.Worker.Concurrency < 1 {
		msgs = append(msgs, checks.Warning("config.W003",
			fmt.Sprintf("WORKER_CONCURRENCY is %d; the worker will not process jobs.", env.Cfg.Worker.Concurrency)).
			WithHint("Set WORKER_CONCURRENCY to at least 1."))
	}
	if env.Cfg.Worker.PollInterval <= 0 {
		msgs = append(msgs, checks.Warning("config.W004",
			"WORKER_POLL_INTERVAL is not positive; the claim loop would spin.").
			WithHint("Use a small positive duration such as 2s."))
	}
	return msgs
}
