// Package app wires the alignment service together: configuration,
// logging and OpenTelemetry, the feed catalogue, fact and reference data,
// and the HTTP server.
//
// # Initialization Flow
//
//  1. Load configuration (defaults, YAML file, PITALIGN_* environment)
//  2. Initialize OpenTelemetry and the application instruments
//  3. Build the feed catalogue from the alignment overrides
//  4. Load every feed file in the data directory and the reference file
//  5. Build the chi router and the HTTP server
//
// # Usage
//
//	app, err := app.NewApplication(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return app.Run(ctx)
//
// Command-line tools that only align once use Deps and Close instead of
// Run.
//
// # Graceful Shutdown
//
// Run returns after SIGINT or SIGTERM once in-flight requests finish or
// the shutdown timeout expires. The app never calls os.Exit.
package app
