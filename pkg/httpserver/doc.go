// Package httpserver runs an http.Server until its context is cancelled,
// then drains long-lived streams and shuts it down gracefully.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log),
//		httpserver.WithDrainHook(func(context.Context) { registry.Close() }))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server failed", logger.Error(err))
//	}
//
// Drain hooks run before http.Server.Shutdown. Shutdown waits for active
// requests, so anything that holds a response open (status streams) must
// be released by a hook or it will run into the shutdown timeout.
//
// LivenessHandler and ReadinessHandler serve the health checks.
package httpserver
