// Package http implements the HTTP handlers of the ivfeatures API.
//
// Handlers are thin: they parse the request, call a service and render the
// result. Errors are converted to RFC 7807 problem responses by the
// responder from the middleware package, so every failure carries a stable
// type, an HTTP status derived from the domain error type and the request's
// trace ID.
//
// # Routes
//
//	GET /api/health                            health with runtime statistics
//	GET /api/health/live                       liveness probe
//	GET /api/features                          feature names and strategies
//	GET /api/sessions                          session directories
//	GET /api/sessions/{name}                   population means of a session
//	GET /api/sessions/{name}/sweeps            every feature of every sweep
//	GET /api/sessions/{name}/features/{feature} one aggregated feature
//	GET /api/sessions/{name}/export?format=    csv, xlsx or json download
//
// Session routes accept a sweep selection: from and to select a half-open
// index range, sweeps a comma separated list of indices (negative ones
// count from the end) and spiking=true|false keeps sweeps with or without
// action potentials.
package http
