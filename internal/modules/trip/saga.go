// README: Small saga runner for multi-record transitions.
package trip

import (
	"context"

	"fleetops/internal/logger"
)

// sagaStep is one forward action with its undo. Transitions that touch the
// trip, the vehicle and the driver are not atomic across records, so on a
// failure partway through the completed steps are compensated in reverse
// instead of leaving partial state behind.
type sagaStep struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context)
}

func runSaga(ctx context.Context, log logger.Logger, steps []sagaStep) error {
	done := make([]sagaStep, 0, len(steps))
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			log.Warn("saga step failed, compensating", "step", step.name, "error", err)
			for i := len(done) - 1; i >= 0; i-- {
				if done[i].compensate != nil {
					done[i].compensate(ctx)
				}
			}
			return err
		}
		done = append(done, step)
	}
	return nil
}
