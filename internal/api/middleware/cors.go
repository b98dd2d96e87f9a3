package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig defines which browser origins may drive sandbox sessions.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// sessionMethods covers every verb the session API routes
var sessionMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodDelete,
	http.MethodOptions,
}

// sessionHeaders are the request headers the API reads. Content-Type
// selects the manifest format on mount; X-Request-ID lets a caller pick
// the ID echoed back in the response envelope.
var sessionHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Accept",
	"Origin",
	RequestIDHeader,
}

// SessionCORSConfig allows origins to call the session API. Browsers only
// let scripts read X-Request-ID when it is exposed, and callers need it to
// match a response to server logs. Sessions carry no cookies, so
// credentials stay off.
func SessionCORSConfig(origins []string) CORSConfig {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return CORSConfig{
		AllowOrigins:  origins,
		AllowMethods:  sessionMethods,
		AllowHeaders:  sessionHeaders,
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
}

// DefaultCORSConfig allows any origin.
func DefaultCORSConfig() CORSConfig {
	return SessionCORSConfig(nil)
}

// CORS creates a CORS middleware with the provided configuration.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     cfg.AllowMethods,
		AllowHeaders:     cfg.AllowHeaders,
		ExposeHeaders:    cfg.ExposeHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
}
