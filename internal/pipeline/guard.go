package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/psdwizzard/Meeting-Buddy-Pro/internal/observe"
)

// releaser is the lifecycle surface every loaded model shares.
type releaser interface {
	Close() error
}

// runStage scopes one model-bearing stage: load the model, run the stage
// against it, release the model. Release happens on every exit path and
// before runStage returns, so the next stage never competes with this one
// for device memory. Release failures are logged and suppressed — they must
// not mask the stage result. Each stage gets its own trace span and a
// duration sample on the stage histogram, load failures included. Backend
// interactions (load, infer, close) land on the provider counters under the
// stage name — each stage binds exactly one backend.
func runStage[M releaser, T any](
	ctx context.Context,
	stage string,
	metrics *observe.Metrics,
	load func(context.Context) (M, error),
	use func(context.Context, M) (T, error),
) (T, error) {
	var zero T

	ctx, span := observe.StartStage(ctx, stage)
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RecordStageDuration(ctx, stage, time.Since(start).Seconds())
	}()

	record := func(op string, err error) {
		status := "ok"
		if err != nil {
			status = "error"
			metrics.RecordProviderError(ctx, stage, op)
		}
		metrics.RecordProviderRequest(ctx, stage, op, status)
	}

	model, err := load(ctx)
	record("load", err)
	if err != nil {
		return zero, fmt.Errorf("%s: load model: %w", stage, err)
	}
	observe.Logger(ctx).Debug("stage model loaded", "stage", stage)

	defer func() {
		cerr := model.Close()
		record("close", cerr)
		if cerr != nil {
			observe.Logger(ctx).Warn("failed to release stage model", "stage", stage, "error", cerr)
			return
		}
		observe.Logger(ctx).Debug("stage model released", "stage", stage, "elapsed", time.Since(start))
	}()

	out, err := use(ctx, model)
	record("infer", err)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", stage, err)
	}
	return out, nil
}
