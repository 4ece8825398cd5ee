// Package app wires the ivfeatures HTTP service together: configuration,
// logging, OpenTelemetry, the session and health services, the router and
// the HTTP server.
//
// # Usage
//
//	application, err := app.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// Run serves until ctx is cancelled, then drains active requests within the
// configured shutdown timeout and flushes the telemetry providers.
package app
