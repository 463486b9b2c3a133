package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cutover/cutover/pkg/migration"
)

const validManifest = `
name: checkout cutover
description: move checkout to the new platform
version: "1.0.0"
phases:
  - id: phase-backup
    name: backup
    estimated_duration: 60m
    tasks:
      - id: task-dump
        name: dump orders
        type: backup
        parameters:
          source: orders-db
    rollback:
      steps:
        - id: rb-restore
          name: restore dump
          action: restore_data
          order: 1
          timeout: 5m
  - id: phase-migrate
    name: migrate
    estimated_duration: 120m
    prerequisites: [phase-backup]
    tasks:
      - id: task-copy
        name: copy orders
        type: data_migration
        validation:
          - id: row-counts
            name: compare row counts
            type: data_integrity
            thresholds:
              max_drift: 0
    rollback:
      steps:
        - id: rb-revert
          name: revert copy
          action: restore_data
          order: 1
dependencies:
  - id: dep-1
    source: phase-migrate
    target: phase-backup
    kind: data
rollback_strategy:
  name: full revert
  trigger: on_phase_failure
  automatic: true
`

func TestParseBytes_ValidManifest(t *testing.T) {
	parsed := NewParser().ParseBytes([]byte(validManifest))

	if !parsed.Valid() {
		t.Fatalf("expected valid manifest, errors: %+v", parsed.Errors)
	}
	m := parsed.Manifest
	if m.Name != "checkout cutover" {
		t.Errorf("name = %q", m.Name)
	}
	if len(m.Phases) != 2 {
		t.Fatalf("parsed %d phases, want 2", len(m.Phases))
	}
	if m.Phases[1].Prerequisites[0] != "phase-backup" {
		t.Errorf("prerequisites = %v", m.Phases[1].Prerequisites)
	}
	if len(m.Dependencies) != 1 || m.Dependencies[0].Target != "phase-backup" {
		t.Errorf("dependencies = %+v", m.Dependencies)
	}
}

func TestParseBytes_InvalidYAML(t *testing.T) {
	parsed := NewParser().ParseBytes([]byte("name: [unclosed"))

	if parsed.Valid() {
		t.Fatal("expected invalid result")
	}
	if len(parsed.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(parsed.Errors))
	}
	if !strings.Contains(parsed.Errors[0].Message, "invalid YAML") {
		t.Errorf("message = %q", parsed.Errors[0].Message)
	}
}

func TestParseBytes_CollectsAllErrors(t *testing.T) {
	manifest := `
phases:
  - name: ""
    tasks:
      - name: copy
        type: teleportation
    estimated_duration: fast
`
	parsed := NewParser().ParseBytes([]byte(manifest))

	if parsed.Valid() {
		t.Fatal("expected invalid result")
	}

	var missingName, badType, badDuration bool
	for _, e := range parsed.Errors {
		switch {
		case strings.Contains(e.Message, "name is required"):
			missingName = true
		case strings.Contains(e.Message, "type must be one of"):
			badType = true
		case strings.Contains(e.Message, `invalid duration "fast"`):
			badDuration = true
		}
	}
	if !missingName || !badType || !badDuration {
		t.Errorf("expected all three problems reported, errors: %+v", parsed.Errors)
	}
}

func TestParseBytes_WarnsOnMissingRollback(t *testing.T) {
	manifest := `
name: risky
phases:
  - name: migrate
    tasks:
      - name: copy
        type: data_migration
`
	parsed := NewParser().ParseBytes([]byte(manifest))

	if !parsed.Valid() {
		t.Fatalf("warnings must not invalidate the manifest, errors: %+v", parsed.Errors)
	}
	found := false
	for _, e := range parsed.Errors {
		if e.Severity == SeverityWarning && strings.Contains(e.Message, "no rollback steps") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a missing-rollback warning, errors: %+v", parsed.Errors)
	}
}

func TestToPlan(t *testing.T) {
	parser := NewParser()
	parsed := parser.ParseBytes([]byte(validManifest))
	if !parsed.Valid() {
		t.Fatalf("manifest invalid: %+v", parsed.Errors)
	}

	plan, err := parser.ToPlan(parsed.Manifest)
	if err != nil {
		t.Fatalf("ToPlan: %v", err)
	}

	if plan.Status != migration.PlanStatusDraft {
		t.Errorf("status = %s, want draft", plan.Status)
	}
	if len(plan.Phases) != 2 {
		t.Fatalf("converted %d phases, want 2", len(plan.Phases))
	}
	if plan.Phases[0].EstimatedDuration != 60 || plan.Phases[1].EstimatedDuration != 120 {
		t.Errorf("durations = %d, %d; want 60, 120",
			plan.Phases[0].EstimatedDuration, plan.Phases[1].EstimatedDuration)
	}
	if plan.Phases[0].Tasks[0].Type != migration.TaskTypeBackup {
		t.Errorf("task type = %s", plan.Phases[0].Tasks[0].Type)
	}
	if got := plan.Phases[0].Rollback.Steps[0].Timeout; got != 5*time.Minute {
		t.Errorf("rollback step timeout = %s, want 5m", got)
	}
	vs := plan.Phases[1].Tasks[0].ValidationSteps
	if len(vs) != 1 || vs[0].Type != migration.ValidationTypeDataIntegrity {
		t.Errorf("validation steps = %+v", vs)
	}
	if vs[0].Criteria.Thresholds["max_drift"] != 0 {
		t.Errorf("thresholds = %v", vs[0].Criteria.Thresholds)
	}
	if len(plan.RollbackStrategies) != 1 || !plan.RollbackStrategies[0].Automatic {
		t.Errorf("rollback strategies = %+v", plan.RollbackStrategies)
	}
	if plan.Metadata["description"] != "move checkout to the new platform" {
		t.Errorf("metadata description = %v", plan.Metadata["description"])
	}
}

func TestToPlan_BadDuration(t *testing.T) {
	parser := NewParser()
	manifest := &PlanManifest{
		Name: "broken",
		Phases: []PhaseManifest{
			{Name: "migrate", EstimatedDuration: "soonish"},
		},
	}
	if _, err := parser.ToPlan(manifest); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(path, []byte(validManifest), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	parsed, err := NewParser().ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if !parsed.Valid() {
		t.Fatalf("errors: %+v", parsed.Errors)
	}
	if parsed.SourceFile != path {
		t.Errorf("source file = %q", parsed.SourceFile)
	}
}

func TestParseFile_Missing(t *testing.T) {
	if _, err := NewParser().ParseFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "ignore.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(validManifest), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	results, err := NewParser().ParseDirectory(dir)
	if err != nil {
		t.Fatalf("ParseDirectory: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("parsed %d manifests, want 2", len(results))
	}
	if filepath.Base(results[0].SourceFile) != "a.yml" {
		t.Errorf("expected name-sorted results, first = %s", results[0].SourceFile)
	}
}

func TestFieldPath(t *testing.T) {
	got := fieldPath("PlanManifest.Phases[0].Tasks[2].Type")
	want := "phases[0].tasks[2].type"
	if got != want {
		t.Errorf("fieldPath = %q, want %q", got, want)
	}
}
