// Package workflow runs an ordered list of named governance steps against a
// set of nodes, pausing between steps and gating each step on the role the
// local node plays.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ardanlabs/poagov/business/core/governance"
	"github.com/ardanlabs/poagov/business/core/registry"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// ErrStepFailed wraps the error of the step that aborted a run.
var ErrStepFailed = errors.New("step failed")

// EventHandler defines a function that is called when events
// occur while running steps.
type EventHandler func(v string, args ...any)

// State is what every step receives and returns.
type State struct {
	TraceID  string
	NodeNo   int
	Registry *registry.Registry
	Contract *governance.Contract
	Values   map[string]any
}

// Self returns the node the workflow runs as.
func (s State) Self() (registry.Node, error) {
	return s.Registry.Node(s.NodeNo)
}

// With returns a copy of the state holding the value under key.
func (s State) With(key string, value any) State {
	values := make(map[string]any, len(s.Values)+1)
	for k, v := range s.Values {
		values[k] = v
	}
	values[key] = value

	s.Values = values
	return s
}

// WithContract returns a copy of the state bound to the contract.
func (s State) WithContract(ctr *governance.Contract) State {
	s.Contract = ctr
	return s
}

// StepFunc performs the work of a step.
type StepFunc func(ctx context.Context, st State) (State, error)

// Step is one named stage of a workflow.
type Step struct {
	Name    string
	Explain string
	Action  Action
	Roles   RoleTable
	Run     StepFunc
}

// =============================================================================

// Config represents the settings for a runner.
type Config struct {
	Out             io.Writer
	Pauser          Pauser
	ContinueOnError bool
	EvHandler       EventHandler
}

// Runner executes steps strictly one after the other.
type Runner struct {
	out             io.Writer
	pauser          Pauser
	continueOnError bool
	evHandler       EventHandler
}

// New constructs a runner.
func New(cfg Config) *Runner {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	out := cfg.Out
	if out == nil {
		out = io.Discard
	}

	pauser := cfg.Pauser
	if pauser == nil {
		pauser = NoPrompt{}
	}

	return &Runner{
		out:             out,
		pauser:          pauser,
		continueOnError: cfg.ContinueOnError,
		evHandler:       ev,
	}
}

// Execute runs the steps in order. The first failing step aborts the run
// unless the runner continues on error, in which case every failure is
// returned together once all steps have run.
func (r *Runner) Execute(ctx context.Context, st State, steps []Step) (State, error) {
	if st.TraceID == "" {
		st.TraceID = uuid.NewString()
	}

	var failures error

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		r.evHandler("workflow: Execute: traceid[%s]: step[%d]: %s: started", st.TraceID, i, step.Name)
		now := time.Now()

		Header(r.out, step.Name)
		if err := r.pauser.Pause(ctx, r.out); err != nil {
			return st, fmt.Errorf("pause: %w", err)
		}

		next, err := r.run(ctx, st, step)
		if err != nil {
			r.evHandler("workflow: Execute: traceid[%s]: step[%d]: %s: ERROR: %s", st.TraceID, i, step.Name, err)
			Failure(r.out, err.Error())

			err = fmt.Errorf("%w: %s: %w", ErrStepFailed, step.Name, err)
			if !r.continueOnError {
				return st, err
			}

			failures = multierror.Append(failures, err)
			continue
		}
		st = next

		if step.Explain != "" {
			Explain(r.out, step.Explain)
		}

		r.evHandler("workflow: Execute: traceid[%s]: step[%d]: %s: completed: %v", st.TraceID, i, step.Name, time.Since(now))
	}

	return st, failures
}

func (r *Runner) run(ctx context.Context, st State, step Step) (State, error) {
	if !step.Roles.Allows(st.NodeNo, step.Action) {
		Nothing(r.out)
		return st, nil
	}

	if step.Run == nil {
		return st, nil
	}

	return step.Run(ctx, st)
}
