/*
Package monitoring provides Prometheus metrics for the sandbox service.

# Overview

Each Metrics value owns a private registry, so tests and embedded servers
can create as many as they need without duplicate registration. All
recording methods accept a nil receiver and do nothing.

# Features

- HTTP request metrics (latency, status by route template)
- Sandbox operation metrics (initialize, mount, run, extract)
- Mounted file and byte counters
- Active session and WebSocket metrics
- Uptime

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "run")
	// ... run the script ...
	timer.Stop(monitoring.StatusSuccess)
*/
package monitoring
