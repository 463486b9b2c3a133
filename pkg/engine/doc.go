// Package engine dispatches migration tasks to type-specific
// executors under timeout and retry policies.
//
// The engine holds a registry mapping task types to Executor
// implementations. Tasks are either executed directly through
// ExecuteTask, which propagates the final failure after retries are
// exhausted, or queued through QueueTask, where a single drain loop
// processes tasks one at a time and swallows individual failures so
// the queue keeps draining. The two paths deliberately have different
// failure policies: direct execution is fail-fast, the queued path
// trades fail-fast for throughput.
package engine
