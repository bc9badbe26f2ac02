// Package server hosts the websocket endpoint and the ambient HTTP
// surface (health, metrics) on a gin engine.
package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexanderramin/gridboard/internal/auth"
	"github.com/alexanderramin/gridboard/internal/cache"
	gbsync "github.com/alexanderramin/gridboard/internal/sync"
)

const userIDKey = "gridboard_user_id"

// Server binds the sync service to HTTP.
type Server struct {
	manager  *cache.Manager
	service  *gbsync.Service
	hub      *gbsync.Hub
	verifier *auth.Verifier
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a Server.
func New(manager *cache.Manager, service *gbsync.Service, hub *gbsync.Hub,
	verifier *auth.Verifier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		manager:  manager,
		service:  service,
		hub:      hub,
		verifier: verifier,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers cannot set headers on websocket dials; the token
			// in the query string is the auth channel, not the origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", s.authenticate, s.serveWS)
	return r
}

// authenticate resolves the bearer token from the Authorization header
// or, for websocket clients, the token query parameter. The connection
// is bound to the authenticated user id; cross-user access never reaches
// the cache.
func (s *Server) authenticate(c *gin.Context) {
	token := c.Query("token")
	if header := c.GetHeader("Authorization"); header != "" {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	userID, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Warn("rejected connection", "error", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Set(userIDKey, userID)
	c.Next()
}

func (s *Server) serveWS(c *gin.Context) {
	userID := c.GetString(userIDKey)

	socket, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "user_id", userID, "error", err)
		return
	}

	ws, err := s.manager.Acquire(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("workspace load failed", "user_id", userID, "error", err)
		_ = socket.Close()
		return
	}
	defer s.manager.Release(userID)

	conn := gbsync.NewConn(socket, ws, s.hub, userID, s.logger)
	s.logger.Info("connection opened", "user_id", userID, "conn_id", conn.ID)
	conn.Run(c.Request.Context(), s.service)
	s.logger.Info("connection closed", "user_id", userID, "conn_id", conn.ID)
}
