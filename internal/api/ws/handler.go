package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/bridge"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/manifest"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/session"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/shared/utils"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the HTTP routes
	},
}

// Envelope is one client message
type Envelope struct {
	ID       string          `json:"id,omitempty"`
	Method   bridge.Method   `json:"method"`
	Path     string          `json:"path,omitempty"`
	Manifest json.RawMessage `json:"manifest,omitempty"` // mount only; absent = configured source
}

// Handler manages WebSocket connections
type Handler struct {
	sessions *session.Manager
	metrics  *monitoring.Metrics
	logger   *logging.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(sessions *session.Manager, metrics *monitoring.Metrics, logger *logging.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		metrics:  metrics,
		logger:   logging.OrNop(logger).Named("ws"),
	}
}

// HandleConnection upgrades GET /sessions/:id/stream and relays envelopes
// to the session bridge, one at a time, in arrival order
func (h *Handler) HandleConnection(c *gin.Context) {
	raw := c.Param("id")
	if !id.IsValidPrefixed(raw, id.SessionPrefix) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"kind": "bad_request", "message": "invalid session id"}})
		return
	}
	sid := id.SessionID(raw)
	s, ok := h.sessions.Get(sid)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "error": gin.H{"kind": "not_found", "message": "session not found"}})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(utils.MaxManifestSize)

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	logger := h.logger.With(zap.String("session", sid.String()))
	logger.Debug("Stream opened")

	ctx := c.Request.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("WebSocket read error", zap.Error(err))
			}
			break
		}

		resp, closed := h.handleMessage(ctx, s.Bridge, data)
		if err := h.send(conn, resp); err != nil {
			logger.Warn("WebSocket write error", zap.Error(err))
			break
		}
		if closed {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
				time.Now().Add(writeWait))
			break
		}
	}
	logger.Debug("Stream closed")
}

// handleMessage answers one envelope. closed reports that the session went
// away and the stream should end.
func (h *Handler) handleMessage(ctx context.Context, b *bridge.Bridge, data []byte) (resp *bridge.Response, closed bool) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		h.metrics.RecordWSMessage("in", "invalid")
		return errorResponse("", bridge.KindBadRequest, "invalid message: "+err.Error()), false
	}
	h.metrics.RecordWSMessage("in", string(env.Method))

	req := bridge.Request{ID: env.ID, Method: env.Method, Path: env.Path}
	if env.Method == bridge.MethodMount && len(env.Manifest) > 0 && string(env.Manifest) != "null" {
		m, err := manifest.Parse(env.Manifest, manifest.FormatJSON)
		if err != nil {
			return errorResponse(env.ID, bridge.KindBadRequest, err.Error()), false
		}
		req.Manifest = m
	}
	if req.ID == "" {
		req.ID = id.NewRequestID().String()
	}

	resp, err := b.Do(ctx, req)
	if err != nil {
		if errors.Is(err, bridge.ErrClosed) {
			return errorResponse(req.ID, bridge.KindInternal, "session closed"), true
		}
		return &bridge.Response{ID: req.ID, Error: bridge.NewErrorPayload(err)}, false
	}
	return resp, false
}

func (h *Handler) send(conn *websocket.Conn, resp *bridge.Response) error {
	data, err := sonic.Marshal(resp)
	if err != nil {
		return err
	}
	status := monitoring.StatusSuccess
	if !resp.Success {
		status = monitoring.StatusError
	}
	h.metrics.RecordWSMessage("out", status)

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func errorResponse(reqID string, kind bridge.ErrorKind, message string) *bridge.Response {
	return &bridge.Response{ID: reqID, Error: &bridge.ErrorPayload{Kind: kind, Message: message}}
}
