// Package services holds the application services behind the HTTP API.
//
// SessionService resolves session names below the data directory, loads
// them on first use and keeps the result until the directory changes.
// Concurrent requests for the same session share one load.
//
// HealthService reports process health together with runtime statistics.
package services
