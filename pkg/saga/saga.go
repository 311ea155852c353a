// Package saga runs an ordered list of compensable steps. When a step fails,
// the compensations of every completed step run in reverse order, so a
// multi-step operation that couples store writes to external side effects can
// be rolled back without ad hoc cleanup code at each call site.
package saga

import (
	"context"
	"fmt"
	"log/slog"

	dErrors "gatepass/pkg/domain-errors"
)

// Step pairs an action with its compensation. Compensate may be nil for steps
// that need no rollback (e.g. pure computation).
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga executes steps in order and compensates on failure.
type Saga struct {
	logger *slog.Logger
	steps  []Step
}

// New constructs an empty saga. A nil logger disables compensation logging.
func New(logger *slog.Logger) *Saga {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Saga{logger: logger}
}

// AddStep appends a step. Steps run in the order they were added.
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Execute runs the steps. On the first failure it runs the compensations of
// all previously completed steps in reverse order and returns the step's
// error. If any compensation itself fails, the returned error carries
// CodeCleanupFailed wrapping the original failure, signalling that manual
// reconciliation is needed.
//
// Compensations run on a context detached from the caller's cancellation: a
// client that disconnects mid-operation must not be able to strand partial
// state.
func (s *Saga) Execute(ctx context.Context) error {
	for i, step := range s.steps {
		if err := step.Run(ctx); err != nil {
			stepErr := fmt.Errorf("step %q: %w", step.Name, err)
			if compErr := s.compensate(context.WithoutCancel(ctx), i); compErr != nil {
				return dErrors.Wrap(stepErr, dErrors.CodeCleanupFailed,
					fmt.Sprintf("compensation failed after step %q: %v", step.Name, compErr))
			}
			return stepErr
		}
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, failedIndex int) error {
	var firstErr error
	for i := failedIndex - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		s.logger.InfoContext(ctx, "running saga compensation", "step", step.Name)
		if err := step.Compensate(ctx); err != nil {
			s.logger.ErrorContext(ctx, "saga compensation failed",
				"step", step.Name,
				"error", err,
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("compensate %q: %w", step.Name, err)
			}
		}
	}
	return firstErr
}
