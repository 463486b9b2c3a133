package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cutover/cutover/pkg/migration"
)

// Parser loads and validates plan manifests.
type Parser struct {
	validate *validator.Validate
}

// NewParser creates a manifest parser.
func NewParser() *Parser {
	return &Parser{validate: validator.New()}
}

// ParseFile loads a manifest from a YAML file. Validation problems are
// collected in the result rather than returned as an error; the error
// return is reserved for I/O failures.
func (p *Parser) ParseFile(path string) (*ParsedManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	parsed := p.ParseBytes(data)
	parsed.SourceFile = path
	for i := range parsed.Errors {
		parsed.Errors[i].File = path
	}
	return parsed, nil
}

// ParseDirectory loads every .yaml and .yml manifest in a directory,
// sorted by file name.
func (p *Parser) ParseDirectory(dir string) ([]*ParsedManifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading manifest directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	results := make([]*ParsedManifest, 0, len(paths))
	for _, path := range paths {
		parsed, err := p.ParseFile(path)
		if err != nil {
			return nil, err
		}
		results = append(results, parsed)
	}
	return results, nil
}

// ParseBytes decodes and validates raw manifest YAML.
func (p *Parser) ParseBytes(data []byte) *ParsedManifest {
	parsed := &ParsedManifest{ParsedAt: time.Now().UTC()}

	var manifest PlanManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		parsed.Errors = append(parsed.Errors, ValidationError{
			Message:  fmt.Sprintf("invalid YAML: %v", err),
			Severity: SeverityError,
		})
		return parsed
	}
	parsed.Manifest = &manifest

	if err := p.validate.Struct(&manifest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				parsed.Errors = append(parsed.Errors, ValidationError{
					Path:     fieldPath(fe.Namespace()),
					Message:  validationMessage(fe),
					Severity: SeverityError,
				})
			}
		} else {
			parsed.Errors = append(parsed.Errors, ValidationError{
				Message:  err.Error(),
				Severity: SeverityError,
			})
		}
	}

	parsed.Errors = append(parsed.Errors, checkDurations(&manifest)...)
	return parsed
}

// ToPlan converts a manifest to a runtime plan. IDs left empty in the
// manifest stay empty; plan creation fills them in.
func (p *Parser) ToPlan(manifest *PlanManifest) (*migration.Plan, error) {
	plan := &migration.Plan{
		Name:     manifest.Name,
		Version:  manifest.Version,
		Status:   migration.PlanStatusDraft,
		Metadata: manifest.Metadata,
	}
	if manifest.Description != "" {
		if plan.Metadata == nil {
			plan.Metadata = make(map[string]interface{})
		}
		plan.Metadata["description"] = manifest.Description
	}

	for _, pm := range manifest.Phases {
		phase, err := toPhase(pm)
		if err != nil {
			return nil, err
		}
		plan.Phases = append(plan.Phases, phase)
	}

	for _, dm := range manifest.Dependencies {
		plan.Dependencies = append(plan.Dependencies, migration.Dependency{
			ID:     dm.ID,
			Source: dm.Source,
			Target: dm.Target,
			Kind:   dm.Kind,
		})
	}

	if manifest.RollbackStrategy != nil {
		plan.RollbackStrategies = append(plan.RollbackStrategies, migration.RollbackStrategy{
			Name:      manifest.RollbackStrategy.Name,
			Trigger:   manifest.RollbackStrategy.Trigger,
			Automatic: manifest.RollbackStrategy.Automatic,
		})
	}

	return plan, nil
}

func toPhase(pm PhaseManifest) (migration.Phase, error) {
	phase := migration.Phase{
		ID:              pm.ID,
		Name:            pm.Name,
		Prerequisites:   pm.Prerequisites,
		SuccessCriteria: pm.SuccessCriteria,
		Status:          migration.PhaseStatusPending,
	}

	if pm.EstimatedDuration != "" {
		d, err := time.ParseDuration(pm.EstimatedDuration)
		if err != nil {
			return phase, fmt.Errorf("phase %s: invalid estimated_duration %q: %w", pm.Name, pm.EstimatedDuration, err)
		}
		phase.EstimatedDuration = int(d / time.Minute)
	}

	for _, tm := range pm.Tasks {
		task := migration.Task{
			ID:         tm.ID,
			Name:       tm.Name,
			Type:       migration.TaskType(tm.Type),
			Parameters: tm.Parameters,
			DependsOn:  tm.DependsOn,
			Status:     migration.TaskStatusPending,
		}
		for _, vm := range tm.Validation {
			task.ValidationSteps = append(task.ValidationSteps, toValidationStep(vm))
		}
		for _, rm := range tm.Rollback {
			step, err := toRollbackStep(rm)
			if err != nil {
				return phase, fmt.Errorf("task %s: %w", tm.Name, err)
			}
			task.RollbackSteps = append(task.RollbackSteps, step)
		}
		phase.Tasks = append(phase.Tasks, task)
	}

	if pm.Rollback != nil {
		phase.Rollback = migration.RollbackProcedure{
			Name:         pm.Rollback.Name,
			SafetyChecks: pm.Rollback.SafetyChecks,
		}
		for _, rm := range pm.Rollback.Steps {
			step, err := toRollbackStep(rm)
			if err != nil {
				return phase, fmt.Errorf("phase %s rollback: %w", pm.Name, err)
			}
			phase.Rollback.Steps = append(phase.Rollback.Steps, step)
		}
		for _, vm := range pm.Rollback.ValidationChecks {
			phase.Rollback.ValidationChecks = append(phase.Rollback.ValidationChecks, toValidationStep(vm))
		}
	}

	return phase, nil
}

func toRollbackStep(rm RollbackStepManifest) (migration.RollbackStep, error) {
	step := migration.RollbackStep{
		ID:         rm.ID,
		Name:       rm.Name,
		Action:     rm.Action,
		Order:      rm.Order,
		Parameters: rm.Parameters,
	}
	if rm.Timeout != "" {
		d, err := time.ParseDuration(rm.Timeout)
		if err != nil {
			return step, fmt.Errorf("rollback step %s: invalid timeout %q: %w", rm.Name, rm.Timeout, err)
		}
		step.Timeout = d
	}
	return step, nil
}

func toValidationStep(vm ValidationStepManifest) migration.ValidationStep {
	return migration.ValidationStep{
		ID:   vm.ID,
		Name: vm.Name,
		Type: migration.ValidationType(vm.Type),
		Criteria: migration.ValidationCriteria{
			Expected:       vm.Expected,
			Thresholds:     vm.Thresholds,
			RequiredFields: vm.RequiredFields,
		},
		TimeoutSeconds: vm.TimeoutSeconds,
	}
}

// checkDurations reports malformed duration strings as validation
// errors so they surface next to struct-tag failures.
func checkDurations(manifest *PlanManifest) []ValidationError {
	var errs []ValidationError
	for i, pm := range manifest.Phases {
		if pm.EstimatedDuration != "" {
			if _, err := time.ParseDuration(pm.EstimatedDuration); err != nil {
				errs = append(errs, ValidationError{
					Path:     fmt.Sprintf("phases[%d].estimated_duration", i),
					Message:  fmt.Sprintf("invalid duration %q", pm.EstimatedDuration),
					Severity: SeverityError,
				})
			}
		}
		if pm.Rollback != nil {
			for j, rm := range pm.Rollback.Steps {
				if rm.Timeout == "" {
					continue
				}
				if _, err := time.ParseDuration(rm.Timeout); err != nil {
					errs = append(errs, ValidationError{
						Path:     fmt.Sprintf("phases[%d].rollback.steps[%d].timeout", i, j),
						Message:  fmt.Sprintf("invalid duration %q", rm.Timeout),
						Severity: SeverityError,
					})
				}
			}
		}
		if len(pm.Tasks) > 0 && (pm.Rollback == nil || len(pm.Rollback.Steps) == 0) {
			errs = append(errs, ValidationError{
				Path:     fmt.Sprintf("phases[%d].rollback", i),
				Message:  fmt.Sprintf("phase %q has tasks but no rollback steps", pm.Name),
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

// fieldPath strips the manifest type prefix from a validator namespace
// and lowercases the field segments to match the YAML keys.
func fieldPath(namespace string) string {
	path := strings.TrimPrefix(namespace, "PlanManifest.")
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		segments[i] = toSnake(seg)
	}
	return strings.Join(segments, ".")
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] >= 'a' && s[i-1] <= 'z' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", toSnake(fe.Field()))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", toSnake(fe.Field()), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", toSnake(fe.Field()), fe.Tag())
	}
}
