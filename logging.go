package chainz

import (
	"context"
	"log/slog"
)

// Logging returns middleware that emits the flowing context as a structured
// log record. The context is rendered through its LogValue implementation,
// so captured errors appear as their string form and keys are emitted in a
// deterministic order. A nil logger falls back to slog.Default().
//
// Tier placement decides what the record shows: on the input tier it logs
// what the links will see, on the output tier what the caller gets back.
func Logging(logger *slog.Logger) Func {
	if logger == nil {
		logger = slog.Default()
	}
	return Apply("logging", func(ctx context.Context, data Ctx) (Ctx, error) {
		logger.LogAttrs(ctx, slog.LevelInfo, "chain context",
			slog.String("trigger", data.String(KeyTrigger)),
			slog.Bool("failed", data.Failed()),
			slog.Any("context", data),
		)
		return data, nil
	})
}
