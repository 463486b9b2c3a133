package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in safety policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		backupBeforeDataMigrationPolicy(),
		rollbackRequiredPolicy(),
		validationCoveragePolicy(),
	}
}

// backupBeforeDataMigrationPolicy requires a backup task before any
// data migration work.
func backupBeforeDataMigrationPolicy() Policy {
	return Policy{
		Name:        "backup-before-data-migration",
		Description: "Data migration tasks require a backup task in the same or an earlier phase",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"safety", "data"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package cutover.policies.backup

import rego.v1

backup_at_or_before(i) if {
	some j, phase in input.plan.phases
	j <= i
	some task in phase.tasks
	task.type == "backup"
}

deny contains violation if {
	input.plan
	some i, phase in input.plan.phases
	some task in phase.tasks
	task.type == "data_migration"
	not backup_at_or_before(i)
	violation := {
		"message": sprintf("phase %s runs data migration task %s without a prior backup task", [phase.id, task.id]),
		"severity": "error",
		"phase": phase.id,
	}
}`,
	}
}

// rollbackRequiredPolicy requires every phase with tasks to define a
// rollback procedure.
func rollbackRequiredPolicy() Policy {
	return Policy{
		Name:        "rollback-required",
		Description: "Phases with tasks must define at least one rollback step",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"safety", "rollback"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package cutover.policies.rollback

import rego.v1

has_rollback(phase) if {
	count(phase.rollback.steps) > 0
}

deny contains violation if {
	input.plan
	some phase in input.plan.phases
	count(phase.tasks) > 0
	not has_rollback(phase)
	violation := {
		"message": sprintf("phase %s has tasks but no rollback steps", [phase.id]),
		"severity": "error",
		"phase": phase.id,
	}
}`,
	}
}

// validationCoveragePolicy warns when data migration tasks carry no
// validation steps.
func validationCoveragePolicy() Policy {
	return Policy{
		Name:        "validation-coverage",
		Description: "Data migration tasks should carry at least one validation step",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"validation", "data"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package cutover.policies.validation

import rego.v1

has_validation(task) if {
	count(task.validation_steps) > 0
}

deny contains violation if {
	input.plan
	some phase in input.plan.phases
	some task in phase.tasks
	task.type == "data_migration"
	not has_validation(task)
	violation := {
		"message": sprintf("data migration task %s in phase %s has no validation steps", [task.id, phase.id]),
		"severity": "warning",
		"phase": phase.id,
	}
}`,
	}
}
