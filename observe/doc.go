// Package observe provides telemetry for the query cache and the
// query-execution path: structured JSON logging, OpenTelemetry metrics for
// cache lookups, and tracing of query executions.
package observe
