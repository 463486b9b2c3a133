package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cutover/cutover/pkg/migration"
)

const freezePolicy = `# Production freeze window
# No phase execution in production while the freeze flag is set.
package cutover.policies.freeze

import rego.v1

deny contains violation if {
	input.context.environment == "production"
	input.context.metadata.freeze == true
	violation := {
		"message": "production is in a change freeze",
		"severity": "error",
	}
}`

func TestLoadFromPaths_RegoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "freeze.rego")
	if err := os.WriteFile(path, []byte(freezePolicy), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loader := NewLoader(testLogger(t))
	policies, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("loaded %d policies, want 1", len(policies))
	}
	p := policies[0]
	if p.Name != "freeze" {
		t.Errorf("name = %q", p.Name)
	}
	if p.Severity != SeverityWarning {
		t.Errorf("default severity = %s, want warning", p.Severity)
	}
	if p.Description == "" || p.Description == p.Rego {
		t.Errorf("description not extracted from comments: %q", p.Description)
	}
}

func TestLoadFromPaths_Directory(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"freeze.rego": freezePolicy,
		"ignored.txt": "not a policy",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	loader := NewLoader(testLogger(t))
	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("loaded %d policies, want 1", len(policies))
	}
}

func TestLoadFromPaths_MissingPath(t *testing.T) {
	loader := NewLoader(testLogger(t))
	if _, err := loader.LoadFromPaths(context.Background(), []string{"/no/such/path.rego"}); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestEngine_LoadCustomPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "freeze.rego")
	if err := os.WriteFile(path, []byte(freezePolicy), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	engine := newTestEngine(t)
	if err := engine.LoadPolicies(context.Background(), []string{path}); err != nil {
		t.Fatalf("LoadPolicies: %v", err)
	}

	result, err := engine.Evaluate(context.Background(), &Input{
		Plan: &migration.Plan{ID: "plan-1"},
		Context: &Context{
			Environment: "production",
			Metadata:    map[string]interface{}{"freeze": true},
		},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	v := findViolation(t, result, "freeze")
	if v == nil {
		t.Fatalf("expected freeze violation, got %+v", result.Violations)
	}
	// Severity comes from the deny object, not the file default.
	if v.Severity != SeverityError {
		t.Errorf("severity = %s, want error", v.Severity)
	}
}
