// Package recovery creates and restores recovery points. A recovery
// point is taken before risky work and bundles a system snapshot, data
// backups and the validation steps needed to confirm a restore. From a
// recovery point the service derives an ordered recovery plan and
// executes it best-effort: a failed step is recorded and later steps
// still run, so one bad restore does not strand the rest of the data.
package recovery
