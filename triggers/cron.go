package triggers

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zoobzio/chainz"
)

// Schedule registers the chain to run on a cron schedule.
//
// Each tick builds a cron context carrying the schedule expression and a
// scheduled_at stamp, runs the chain, and logs the outcome: failed contexts
// log at warn level with the captured error, healthy ones at info. A nil
// logger falls back to slog.Default(). The returned EntryID can be used to
// remove the job from the runner.
//
// The caller owns the cron runner's lifecycle; Schedule does not start it.
func Schedule(c *cron.Cron, spec string, chain Runner, logger *slog.Logger) (cron.EntryID, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return c.AddFunc(spec, func() {
		input := chainz.NewCronContext(spec).
			With("scheduled_at", time.Now().Format(time.RFC3339Nano))
		result := chain.Run(context.Background(), input)

		if result.Failed() {
			logger.Warn("scheduled chain failed",
				slog.String("chain", chain.Name()),
				slog.String("schedule", spec),
				slog.String("error", result.Err().Error()))
			return
		}
		logger.Info("scheduled chain completed",
			slog.String("chain", chain.Name()),
			slog.String("schedule", spec))
	})
}
