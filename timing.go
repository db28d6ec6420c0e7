package chainz

import (
	"context"
	"maps"
	"time"
)

// KeyStartTime is where PerformanceTracker records its wall-clock start
// inside the performance map.
const KeyStartTime = "start_time"

// PerformanceTracker returns middleware that stamps the current time into
// the performance map under "start_time". Existing performance entries are
// preserved. Pair it with Timing: the tracker runs on the input side and
// the timing middleware reads the stamp on the output side.
//
// Example:
//
//	chain := chainz.NewChain("api", handler).
//	    OnInput(chainz.PerformanceTracker()).
//	    OnOutput(chainz.Timing("api"))
func PerformanceTracker() Func {
	return Apply("performance_tracker", func(_ context.Context, data Ctx) (Ctx, error) {
		perf := make(Ctx)
		switch existing := data[KeyPerformance].(type) {
		case Ctx:
			maps.Copy(perf, existing)
		case map[string]any:
			maps.Copy(perf, existing)
		}
		perf[KeyStartTime] = time.Now()
		return data.With(KeyPerformance, perf), nil
	})
}

// Timing returns middleware that records elapsed milliseconds under label
// in the timing map. Elapsed time is measured from the performance start
// stamp when one is present (see PerformanceTracker); without a stamp it
// records 0 rather than guessing. Existing timing entries are preserved.
func Timing(label string) Func {
	return Apply(Name("timing:"+label), func(_ context.Context, data Ctx) (Ctx, error) {
		var elapsed float64
		if start, ok := startTime(data); ok {
			elapsed = time.Since(start).Seconds() * 1000
		}
		return data.WithTiming(label, elapsed), nil
	})
}

// startTime extracts the performance start stamp, tolerating both the Ctx
// the tracker writes and a plain map from decoded input.
func startTime(data Ctx) (time.Time, bool) {
	switch perf := data[KeyPerformance].(type) {
	case Ctx:
		t, ok := perf[KeyStartTime].(time.Time)
		return t, ok
	case map[string]any:
		t, ok := perf[KeyStartTime].(time.Time)
		return t, ok
	}
	return time.Time{}, false
}
