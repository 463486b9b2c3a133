package policy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cutover/cutover/pkg/migration"
)

// Gate adapts the policy engine to the orchestrator's phase check. A
// blocking violation that names the phase, or names no phase at all,
// stops the phase from executing.
type Gate struct {
	engine      *Engine
	environment string
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithEnvironment sets the environment reported to policies.
func WithEnvironment(env string) GateOption {
	return func(g *Gate) { g.environment = env }
}

// NewGate creates a phase gate backed by the policy engine.
func NewGate(engine *Engine, opts ...GateOption) *Gate {
	g := &Gate{engine: engine}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckPhase evaluates all policies against the plan and blocks the
// phase when a blocking violation applies to it.
func (g *Gate) CheckPhase(ctx context.Context, plan *migration.Plan, phaseID string) error {
	result, err := g.engine.Evaluate(ctx, &Input{
		Plan:    plan,
		PhaseID: phaseID,
		Context: &Context{
			Environment: g.environment,
			Operation:   "execute_phase",
			Timestamp:   time.Now(),
		},
	})
	if err != nil {
		return migration.NewExecutionError(
			fmt.Sprintf("policy evaluation failed for phase %s", phaseID), err).
			WithPhase(plan.ID, phaseID)
	}

	var blocking []string
	for _, v := range result.Violations {
		if !v.Severity.Blocking() {
			continue
		}
		if v.PhaseID != "" && v.PhaseID != phaseID {
			continue
		}
		blocking = append(blocking, fmt.Sprintf("%s: %s", v.Policy, v.Message))
	}
	if len(blocking) > 0 {
		return migration.NewValidationError(
			fmt.Sprintf("phase %s blocked by policy: %s", phaseID, strings.Join(blocking, "; ")), nil).
			WithPhase(plan.ID, phaseID)
	}
	return nil
}
