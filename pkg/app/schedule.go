package app

import (
	"context"
	"time"

	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"github.com/shashiranjanraj/ferremas/pkg/schedule"
)

// Task names, also accepted by `schedule:run --now`.
const (
	TaskRatesSync       = "rates:sync"
	TaskRepositionSweep = "stock:reposition-sweep"
	TaskPruneTokens     = "tokens:prune"
)

// Schedule registers the periodic tasks.
func Schedule(svc *services.Services) *schedule.Scheduler {
	s := schedule.New()

	must(s.Daily().At(config.Get("RATES_SYNC_AT", "08:30")).
		Name(TaskRatesSync).
		WithoutOverlapping().
		Timeout(2 * time.Minute).
		Run(func(ctx context.Context) error {
			_, err := svc.Currency.Sync(ctx)
			return err
		}))

	must(s.Every(config.Int("REPOSITION_SWEEP_MINUTES", 5)).Minutes().
		Name(TaskRepositionSweep).
		WithoutOverlapping().
		Run(func(ctx context.Context) error {
			n, err := svc.Inventory.Sweep(ctx)
			if n > 0 {
				logger.WithCtx(ctx).Info("schedule: reposition sweep", "restored", n)
			}
			return err
		}))

	must(s.Cron("0 3 * * *").
		Name(TaskPruneTokens).
		Run(func(ctx context.Context) error {
			_, err := svc.Auth.PruneRevoked(ctx)
			return err
		}))

	return s
}

// must logs a task that could not be registered; the others still run.
func must(err error) {
	if err != nil {
		logger.Error("schedule: register task", "error", err)
	}
}
