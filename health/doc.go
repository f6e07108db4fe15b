// Package health provides liveness and readiness checks for services that
// embed the query cache.
//
// A Checker inspects one component and reports a Result. The Aggregator
// fans out over registered checkers and folds their results into an
// overall status. CacheChecker is the built-in checker for the query
// cache itself and reports hit rate and occupancy.
//
// HTTP probe handlers are provided for the conventional /healthz,
// /readyz, and /health endpoints.
package health
