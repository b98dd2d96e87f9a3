/*
Package bridge is the message boundary in front of a worker.

A Bridge runs its worker on one goroutine and feeds it requests over a
channel, one at a time. Each request carries a ULID and its own reply
channel. A caller whose context ends stops waiting, but the request keeps
running and its effects stay.

Typed methods (Initialize, RunScript, MountFiles) return worker errors as
is. Handle wraps the same calls for transports and converts failures into
an ErrorPayload tagged init, mount, not_initialized, run, extract,
bad_request or internal.
*/
package bridge
