// Package orchestrator is the top-level state machine for staged
// migrations. It creates and validates plans, sequences phase
// execution through the execution engine, tracks progress, and
// reverses completed work through phase-level rollback procedures.
//
// Phases execute strictly sequentially in plan order, and tasks
// within a phase execute strictly sequentially in list order. A
// per-plan mutex serializes concurrent callers driving the same plan,
// and every state transition is persisted through the store before
// control returns.
package orchestrator
