// Package saga runs multi-step provisioning with compensating actions.
package saga

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("saga")

// Step is one unit of work. Undo may be nil for steps with nothing to revert
// (typically the last one).
type Step struct {
	Name string
	Do   func(ctx context.Context) error
	Undo func(ctx context.Context) error
}

// CompensationFunc observes every undo run; outcome is "ok" or "failed".
type CompensationFunc func(saga, step, outcome string)

// Saga executes steps in order. When a step fails, the undo actions of the
// completed steps run in reverse order on a context that ignores the
// caller's cancellation.
type Saga struct {
	name     string
	steps    []Step
	logger   *zap.Logger
	observer CompensationFunc
}

// New creates a saga. observer may be nil.
func New(name string, logger *zap.Logger, observer CompensationFunc) *Saga {
	return &Saga{name: name, logger: logger, observer: observer}
}

// Add appends a step.
func (s *Saga) Add(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Error reports which step failed and which undo actions failed after it.
type Error struct {
	Saga       string
	Step       string
	Err        error
	UndoErrors map[string]error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("saga %s: step %s: %v", e.Saga, e.Step, e.Err)
	if len(e.UndoErrors) > 0 {
		msg += fmt.Sprintf(" (%d undo failures)", len(e.UndoErrors))
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Run executes the saga.
func (s *Saga) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Saga."+s.name)
	defer span.End()

	done := make([]Step, 0, len(s.steps))
	for _, step := range s.steps {
		if err := step.Do(ctx); err != nil {
			span.SetAttributes(attribute.String("saga.failed_step", step.Name))
			s.logger.Warn("saga step failed, compensating",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Int("completed_steps", len(done)),
				zap.Error(err),
			)
			return &Error{
				Saga:       s.name,
				Step:       step.Name,
				Err:        err,
				UndoErrors: s.compensate(context.WithoutCancel(ctx), done),
			}
		}
		done = append(done, step)
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, done []Step) map[string]error {
	var failed map[string]error
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Undo == nil {
			continue
		}

		outcome := "ok"
		if err := step.Undo(ctx); err != nil {
			outcome = "failed"
			if failed == nil {
				failed = map[string]error{}
			}
			failed[step.Name] = err
			s.logger.Error("saga undo failed",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
		} else {
			s.logger.Info("saga step undone", zap.String("saga", s.name), zap.String("step", step.Name))
		}
		if s.observer != nil {
			s.observer(s.name, step.Name, outcome)
		}
	}
	return failed
}

// UndoFailed reports whether err is a saga error with at least one failed
// undo, meaning external state may need manual cleanup.
func UndoFailed(err error) bool {
	var se *Error
	return errors.As(err, &se) && len(se.UndoErrors) > 0
}
