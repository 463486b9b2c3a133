package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cutover/cutover/pkg/migration"
)

// ValidatePlan runs structural checks over a plan and returns every
// finding rather than stopping at the first failure. An empty result
// means the plan is structurally sound. Findings for a persisted plan
// are recorded through the store so they appear in reports.
func (o *Orchestrator) ValidatePlan(ctx context.Context, plan *migration.Plan) []migration.ValidationResult {
	now := time.Now().UTC()

	if len(plan.Phases) == 0 {
		findings := []migration.ValidationResult{{
			StepID:    "plan-structure",
			Success:   false,
			Message:   "plan must contain at least one phase",
			Timestamp: now,
		}}
		o.saveValidationFindings(ctx, plan.ID, findings)
		return findings
	}

	findings := []migration.ValidationResult{}

	phaseIDs := make(map[string]bool, len(plan.Phases))
	for i := range plan.Phases {
		phase := &plan.Phases[i]
		phaseIDs[phase.ID] = true
		if len(phase.Tasks) == 0 {
			findings = append(findings, migration.ValidationResult{
				StepID:    fmt.Sprintf("phase-%s-tasks", phase.ID),
				Success:   false,
				Message:   fmt.Sprintf("phase %s must contain at least one task", phase.ID),
				Timestamp: now,
			})
		}
	}

	for _, dep := range plan.Dependencies {
		if !phaseIDs[dep.Source] || !phaseIDs[dep.Target] {
			findings = append(findings, migration.ValidationResult{
				StepID:    fmt.Sprintf("dependency-%s", dep.ID),
				Success:   false,
				Message:   fmt.Sprintf("dependency %s references missing phase (source %s, target %s)", dep.ID, dep.Source, dep.Target),
				Timestamp: now,
			})
		}
	}

	if cycle := detectDependencyCycle(plan); len(cycle) > 0 {
		findings = append(findings, migration.ValidationResult{
			StepID:    "dependency-cycle",
			Success:   false,
			Message:   fmt.Sprintf("circular dependency detected: %s", strings.Join(cycle, " -> ")),
			Timestamp: now,
		})
	}

	o.saveValidationFindings(ctx, plan.ID, findings)
	return findings
}

// saveValidationFindings records findings for a plan that already has
// an identity. Store failures are logged, not propagated; validation
// stays fail-open.
func (o *Orchestrator) saveValidationFindings(ctx context.Context, planID string, findings []migration.ValidationResult) {
	if planID == "" {
		return
	}
	for i := range findings {
		if err := o.store.SaveValidationResult(ctx, planID, &findings[i]); err != nil {
			o.logger.WithPlanID(planID).WithError(err).Warn("failed to persist validation finding")
		}
	}
}

// detectDependencyCycle runs a depth-first search with a recursion
// stack over the phase dependency graph and returns the first cycle
// found, or nil.
func detectDependencyCycle(plan *migration.Plan) []string {
	adjacency := make(map[string][]string)
	for _, dep := range plan.Dependencies {
		adjacency[dep.Source] = append(adjacency[dep.Source], dep.Target)
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var visit func(node string, path []string) []string
	visit = func(node string, path []string) []string {
		visited[node] = true
		recStack[node] = true
		path = append(path, node)

		for _, next := range adjacency[node] {
			if !visited[next] {
				if cycle := visit(next, path); cycle != nil {
					return cycle
				}
			} else if recStack[next] {
				// Trim the path to the cycle and close it.
				start := 0
				for i, id := range path {
					if id == next {
						start = i
						break
					}
				}
				return append(append([]string{}, path[start:]...), next)
			}
		}

		recStack[node] = false
		return nil
	}

	for i := range plan.Phases {
		id := plan.Phases[i].ID
		if !visited[id] {
			if cycle := visit(id, nil); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
