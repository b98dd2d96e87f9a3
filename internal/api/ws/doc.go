// Package ws streams bridge requests over a WebSocket bound to one session.
//
// Each text frame is an envelope and gets exactly one response frame, in
// arrival order.
//
// Client → Server:
//
//	{"id": "1", "method": "initialize"}
//	{"id": "2", "method": "run", "path": "app.js"}
//	{"id": "3", "method": "mount", "manifest": {"a.txt": {"kind": "text", "content": "hi"}}}
//	{"id": "4", "method": "state"}
//	{"id": "5", "method": "read_file", "path": "a.txt"}
//	{"id": "6", "method": "ping"}
//
// Server → Client:
//
//	{"id": "2", "success": true, "components": {...}}
//	{"id": "2", "success": false, "error": {"kind": "run", "message": "..."}}
//
// Example Usage:
//
//	handler := ws.NewHandler(sessions, metrics, logger)
//	router.GET("/sessions/:id/stream", handler.HandleConnection)
package ws
