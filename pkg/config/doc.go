// Package config loads migration plan manifests from YAML. A manifest
// is the operator-facing form of a plan: phases, tasks, dependencies
// and rollback procedures, with durations written as Go duration
// strings. Parsing validates the manifest against struct tags and
// reports every problem at once with file and field locations, then
// converts it to the runtime plan model.
package config
