// Package toolexecutor manages the tools the model may request and
// executes a single tool call at a time. Tool arguments arrive as the
// provider's raw JSON and are schema-validated before the handler
// ever sees them.
package toolexecutor
