package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/bridge"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/manifest"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/session"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/worker"
)

type testServer struct {
	router   *gin.Engine
	sessions *session.Manager
}

func newTestServer(t *testing.T, project manifest.Manifest, opts ...session.Option) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := monitoring.NewMetrics()
	manager := session.NewManager(func(id.SessionID) *worker.Worker {
		return worker.New(worker.DefaultConfig(), manifest.Static(project), worker.WithMetrics(metrics))
	}, append([]session.Option{session.WithMetrics(metrics)}, opts...)...)
	t.Cleanup(func() { _ = manager.CloseAll() })

	router := gin.New()
	router.Use(middleware.RequestID(), monitoring.Middleware(metrics))
	NewHandlers(manager, metrics, nil).Register(router)
	return &testServer{router: router, sessions: manager}
}

func (s *testServer) do(t *testing.T, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) create(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/sessions", "", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		Session session.Info `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Session.ID.String()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) bridge.Response {
	t.Helper()
	var resp bridge.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func project() manifest.Manifest {
	return manifest.New(
		manifest.Entry{Path: "app.js", Payload: manifest.Text(`ui.render("btn1", { type: "button", label: "Go" });`)},
		manifest.Entry{Path: "boom.js", Payload: manifest.Text(`throw new Error("boom");`)},
		manifest.Entry{Path: "img.bin", Payload: manifest.BinaryBytes([]byte{0, 1, 2})},
	)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, project())
	sid := s.create(t)
	assert.True(t, id.IsValidPrefixed(sid, id.SessionPrefix))

	w := s.do(t, http.MethodGet, "/sessions", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), sid)

	w = s.do(t, http.MethodDelete, "/sessions/"+sid, "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/sessions/"+sid, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, s.sessions.Len())
}

func TestRunScript(t *testing.T) {
	s := newTestServer(t, project())
	sid := s.create(t)
	base := "/sessions/" + sid

	// Not yet initialized
	w := s.do(t, http.MethodPost, base+"/run", "application/json", `{"path":"app.js"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, bridge.KindNotInitialized, decode(t, w).Error.Kind)

	w = s.do(t, http.MethodPost, base+"/initialize", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode(t, w).Success)

	w = s.do(t, http.MethodPost, base+"/run", "application/json", `{"path":"app.js"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, w.Header().Get(middleware.RequestIDHeader), resp.ID)

	components, err := json.Marshal(resp.Components)
	require.NoError(t, err)
	assert.JSONEq(t, `{"btn1":{"type":"button","label":"Go"}}`, string(components))
}

func TestRunScriptEmptyRender(t *testing.T) {
	s := newTestServer(t, manifest.New(
		manifest.Entry{Path: "quiet.js", Payload: manifest.Text("var x = 1;")},
	))
	base := "/sessions/" + s.create(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/initialize", "", "").Code)

	w := s.do(t, http.MethodPost, base+"/run", "application/json", `{"path":"quiet.js"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{}, body["components"])
}

func TestRunScriptErrors(t *testing.T) {
	s := newTestServer(t, project())
	sid := s.create(t)
	base := "/sessions/" + sid
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/initialize", "", "").Code)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKind   string
		wantMsg    string
	}{
		{
			name:       "script throws",
			body:       `{"path":"boom.js"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   string(bridge.KindRun),
			wantMsg:    "Error: boom",
		},
		{
			name:       "missing script",
			body:       `{"path":"missing.js"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   string(bridge.KindRun),
			wantMsg:    "missing.js",
		},
		{
			name:       "missing path",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   string(bridge.KindBadRequest),
		},
		{
			name:       "blank path",
			body:       `{"path":"   "}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   string(bridge.KindBadRequest),
		},
		{
			name:       "malformed body",
			body:       `{"path":`,
			wantStatus: http.StatusBadRequest,
			wantKind:   string(bridge.KindBadRequest),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, base+"/run", "application/json", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			var body struct {
				Error bridge.ErrorPayload `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantKind, string(body.Error.Kind))
			if tt.wantMsg != "" {
				assert.Contains(t, body.Error.Message, tt.wantMsg)
			}
		})
	}
}

func TestMountAndReadFile(t *testing.T) {
	s := newTestServer(t, project())
	sid := s.create(t)
	base := "/sessions/" + sid
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/initialize", "", "").Code)

	// Empty body mounts the configured source
	w := s.do(t, http.MethodPost, base+"/mount", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	require.NotNil(t, resp.Mount)
	assert.Equal(t, 3, resp.Mount.Files)

	w = s.do(t, http.MethodPost, base+"/mount", "application/json", `{"notes/a.txt":{"kind":"text","content":"hi"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode(t, w).Mount.Files)

	w = s.do(t, http.MethodPost, base+"/mount", "application/yaml", "b.txt:\n  type: text\n  content: bee\n")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, base+"/mount?format=toml", "", "[\"c.txt\"]\nkind = \"text\"\ncontent = \"sea\"\n")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tests := []struct {
		path     string
		wantKind manifest.Kind
		want     string
	}{
		{"notes/a.txt", manifest.KindText, "hi"},
		{"b.txt", manifest.KindText, "bee"},
		{"c.txt", manifest.KindText, "sea"},
		{"img.bin", manifest.KindBinary, "AAEC"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := s.do(t, http.MethodGet, base+"/files/"+tt.path, "", "")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			file := decode(t, w).File
			require.NotNil(t, file)
			assert.Equal(t, tt.wantKind, file.Kind)
			assert.Equal(t, tt.want, file.Content)
		})
	}

	w = s.do(t, http.MethodGet, base+"/files/nope.txt", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMountRejectsBadManifests(t *testing.T) {
	s := newTestServer(t, project())
	sid := s.create(t)
	base := "/sessions/" + sid
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/initialize", "", "").Code)

	w := s.do(t, http.MethodPost, base+"/mount", "application/json", `{"a.txt":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, base+"/mount", "application/json", `{"../x.txt":{"kind":"text","content":"x"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode(t, w)
	assert.Equal(t, bridge.KindMount, resp.Error.Kind)
	assert.Equal(t, "../x.txt", resp.Error.Path)
}

func TestState(t *testing.T) {
	s := newTestServer(t, project())
	sid := s.create(t)
	base := "/sessions/" + sid

	w := s.do(t, http.MethodGet, base+"/state", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode(t, w).State.Initialized)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/initialize", "", "").Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/run", "application/json", `{"path":"app.js"}`).Code)

	w = s.do(t, http.MethodGet, base+"/state", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	state := decode(t, w).State
	require.NotNil(t, state)
	assert.True(t, state.Initialized)
	assert.Equal(t, "app.js", state.ActiveScriptPath)
	assert.Contains(t, state.LastComponents, "btn1")
}

func TestUnknownSessions(t *testing.T) {
	s := newTestServer(t, project())

	w := s.do(t, http.MethodPost, "/sessions/not-a-session/initialize", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/sessions/"+id.NewSessionID().String()+"/initialize", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionLimit(t *testing.T) {
	s := newTestServer(t, project(), session.WithLimit(1))
	s.create(t)

	w := s.do(t, http.MethodPost, "/sessions", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, project())
	s.create(t)

	w := s.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var health struct {
		Status   string                     `json:"status"`
		Sessions int                        `json:"sessions"`
		Metrics  monitoring.MetricsSnapshot `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Sessions)
	assert.Equal(t, int64(1), health.Metrics.ActiveSessions)

	w = s.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scriptworker_sessions_active 1")
	assert.Contains(t, w.Body.String(), "scriptworker_http_requests_total")
}

func TestStatusFor(t *testing.T) {
	tests := map[bridge.ErrorKind]int{
		bridge.KindBadRequest:     http.StatusBadRequest,
		bridge.KindNotInitialized: http.StatusConflict,
		bridge.KindInit:           http.StatusUnprocessableEntity,
		bridge.KindMount:          http.StatusUnprocessableEntity,
		bridge.KindRun:            http.StatusUnprocessableEntity,
		bridge.KindExtract:        http.StatusUnprocessableEntity,
		bridge.KindInternal:       http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, statusFor(kind), kind)
	}
}
