package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/bridge"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/manifest"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/session"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/shared/utils"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/vfs"
)

// Version is reported by the root endpoint
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	sessions *session.Manager
	metrics  *monitoring.Metrics
	logger   *logging.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(sessions *session.Manager, metrics *monitoring.Metrics, logger *logging.Logger) *Handlers {
	return &Handlers{
		sessions: sessions,
		metrics:  metrics,
		logger:   logging.OrNop(logger).Named("api"),
	}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	r.GET("/sessions", h.ListSessions)
	r.POST("/sessions", h.CreateSession)
	r.DELETE("/sessions/:id", h.CloseSession)

	r.POST("/sessions/:id/initialize", h.Initialize)
	r.POST("/sessions/:id/run", h.RunScript)
	r.POST("/sessions/:id/mount", h.MountFiles)
	r.GET("/sessions/:id/state", h.State)
	r.GET("/sessions/:id/files/*path", h.ReadFile)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "scriptworker",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": h.sessions.Len(),
		"metrics":  h.metrics.Snapshot(),
	})
}

// ListSessions lists live sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.sessions.List()})
}

// CreateSession starts a sandbox session
func (h *Handlers) CreateSession(c *gin.Context) {
	s, err := h.sessions.Create()
	if err != nil {
		if errors.Is(err, session.ErrLimit) {
			abortError(c, http.StatusServiceUnavailable, "limit", err.Error())
			return
		}
		abortError(c, http.StatusInternalServerError, string(bridge.KindInternal), err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"session": session.Info{ID: s.ID, CreatedAt: s.CreatedAt},
	})
}

// CloseSession stops a session after its in-flight request
func (h *Handlers) CloseSession(c *gin.Context) {
	sid, ok := h.sessionID(c)
	if !ok {
		return
	}
	if err := h.sessions.Close(sid); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			abortError(c, http.StatusNotFound, "not_found", err.Error())
			return
		}
		h.logger.Warn("Session close reported an error", zap.String("session", sid.String()), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": sid})
}

// Initialize prepares the session sandbox
func (h *Handlers) Initialize(c *gin.Context) {
	h.dispatch(c, bridge.Request{Method: bridge.MethodInitialize})
}

// RunRequest is the body of POST /sessions/:id/run
type RunRequest struct {
	Path string `json:"path" binding:"required"`
}

// RunScript runs a script and returns the rendered components
func (h *Handlers) RunScript(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, string(bridge.KindBadRequest), "invalid request body: "+err.Error())
		return
	}
	h.dispatch(c, bridge.Request{Method: bridge.MethodRun, Path: req.Path})
}

// MountFiles mounts the posted manifest, or the configured source when the
// body is empty. The format comes from ?format= or the Content-Type.
func (h *Handlers) MountFiles(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, utils.MaxManifestSize+1))
	if err != nil {
		abortError(c, http.StatusBadRequest, string(bridge.KindBadRequest), "failed to read body: "+err.Error())
		return
	}
	if err := utils.ManifestValidator().ValidateSize(data); err != nil {
		abortError(c, http.StatusRequestEntityTooLarge, string(bridge.KindBadRequest), err.Error())
		return
	}

	req := bridge.Request{Method: bridge.MethodMount}
	if len(strings.TrimSpace(string(data))) > 0 {
		m, err := manifest.Parse(data, requestFormat(c))
		if err != nil {
			abortError(c, http.StatusBadRequest, string(bridge.KindBadRequest), err.Error())
			return
		}
		req.Manifest = m
	}
	h.dispatch(c, req)
}

// State returns the worker state
func (h *Handlers) State(c *gin.Context) {
	h.dispatch(c, bridge.Request{Method: bridge.MethodState})
}

// ReadFile returns a sandbox file in manifest form
func (h *Handlers) ReadFile(c *gin.Context) {
	// Paths resolve against the project root
	p := strings.TrimPrefix(c.Param("path"), "/")
	h.dispatch(c, bridge.Request{Method: bridge.MethodReadFile, Path: p})
}

// dispatch sends req to the session's bridge and writes the response
func (h *Handlers) dispatch(c *gin.Context, req bridge.Request) {
	sid, ok := h.sessionID(c)
	if !ok {
		return
	}
	s, ok := h.sessions.Get(sid)
	if !ok {
		abortError(c, http.StatusNotFound, "not_found", "session not found")
		return
	}

	req.ID = middleware.GetRequestID(c)
	resp, err := s.Bridge.Do(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, bridge.ErrClosed) {
			abortError(c, http.StatusNotFound, "not_found", "session closed")
			return
		}
		payload := bridge.NewErrorPayload(err)
		status := statusFor(payload.Kind)
		if req.Method == bridge.MethodReadFile && errors.Is(err, vfs.ErrNotExist) {
			status = http.StatusNotFound
		}
		c.AbortWithStatusJSON(status, &bridge.Response{ID: req.ID, Error: payload})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) sessionID(c *gin.Context) (id.SessionID, bool) {
	raw := c.Param("id")
	if !id.IsValidPrefixed(raw, id.SessionPrefix) {
		abortError(c, http.StatusBadRequest, string(bridge.KindBadRequest), "invalid session id")
		return "", false
	}
	return id.SessionID(raw), true
}

// statusFor maps an error kind to an HTTP status
func statusFor(kind bridge.ErrorKind) int {
	switch kind {
	case bridge.KindBadRequest:
		return http.StatusBadRequest
	case bridge.KindNotInitialized:
		return http.StatusConflict
	case bridge.KindInit, bridge.KindMount, bridge.KindRun, bridge.KindExtract:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func requestFormat(c *gin.Context) manifest.Format {
	if f := c.Query("format"); f != "" {
		return manifest.Format(strings.ToLower(f))
	}
	switch ct := c.ContentType(); {
	case strings.Contains(ct, "yaml"):
		return manifest.FormatYAML
	case strings.Contains(ct, "toml"):
		return manifest.FormatTOML
	default:
		return manifest.FormatJSON
	}
}

func abortError(c *gin.Context, status int, kind string, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"kind":    kind,
			"message": message,
		},
	})
}
