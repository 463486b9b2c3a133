// Package policy provides Open Policy Agent (OPA) integration for
// migration plans.
//
// Policies are written in Rego and evaluated against a plan before a
// phase is allowed to execute. Built-in safety policies cover the
// common governance requirements of a staged migration; custom
// policies can be loaded from files and directories with hot reload.
//
// # Usage
//
// Creating an engine and evaluating a plan:
//
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := engine.EvaluatePlan(ctx, plan)
//	if !result.Allowed {
//	    for _, v := range result.Violations {
//	        fmt.Printf("%s: %s\n", v.Policy, v.Message)
//	    }
//	}
//
// The Gate type adapts the engine to the orchestrator's phase check:
//
//	orch := orchestrator.New(store, eng, tel,
//	    orchestrator.WithPolicyGate(policy.NewGate(engine)))
//
// # Built-in policies
//
//  1. backup-before-data-migration - data migration work requires a
//     backup task in the same or an earlier phase
//  2. rollback-required - phases with tasks must define rollback steps
//  3. validation-coverage - data migration tasks must carry at least
//     one validation step
//
// # Custom policies
//
// Custom policies deny with a violation object:
//
//	package cutover.policies.freeze
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.context.environment == "production"
//	    input.context.operation == "execute_phase"
//	    not input.plan.metadata.change_ticket
//	    violation := {
//	        "message": "production execution requires a change ticket",
//	        "severity": "error",
//	    }
//	}
//
// # Severity levels
//
// Violations carry one of four severities: info, warning, error,
// critical. Error and critical violations block the operation.
//
// # Hot reload
//
// The loader watches policy files for changes and reloads them:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return engine.LoadPolicies(ctx, paths)
//	})
package policy
