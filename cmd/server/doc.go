// Package main is the entry point for the sandbox script worker service.
//
// The server hosts isolated JavaScript sandboxes. Each session owns one
// sandbox: project files are mounted from a manifest, scripts run inside a
// goja engine, and the components they render come back as JSON.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Serve project_fs.json from the working directory
//	./server -port 8000
//
//	# Mount a live project directory, development logging
//	./server -source dir -manifest ./project -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
