// Package http exposes sandbox sessions over REST.
//
// Routes:
//   - GET    /health, /metrics
//   - GET    /sessions
//   - POST   /sessions
//   - DELETE /sessions/:id
//   - POST   /sessions/:id/initialize
//   - POST   /sessions/:id/run        {"path": "..."}
//   - POST   /sessions/:id/mount      manifest body (json, yaml, toml) or empty
//   - GET    /sessions/:id/state
//   - GET    /sessions/:id/files/*path
//
// Failures carry the bridge error payload. not_initialized maps to 409,
// bad_request to 400, and sandbox failures (init, mount, run, extract) to 422.
package http
