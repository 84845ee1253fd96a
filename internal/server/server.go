// Package server is a reference implementation of the punchlist HTTP
// API, intended for self-hosting and integration tests. Accounts and
// tasks live in SQLite; access tokens are held in memory and expire,
// refresh tokens are persisted and survive restarts.
package server

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	accessTokenTTL = time.Hour

	// bcryptCost trades hashing time for resistance to offline
	// cracking of a leaked database.
	bcryptCost = 12
)

type accessSession struct {
	userID       string
	refreshToken string
	expiresAt    time.Time
}

// Server serves the auth and task endpoints.
type Server struct {
	store  *Store
	log    *slog.Logger
	router *gin.Engine

	mu       sync.Mutex
	sessions map[string]accessSession
}

// New creates a Server backed by store.
func New(store *Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		store:    store,
		log:      log,
		router:   router,
		sessions: make(map[string]accessSession),
	}

	auth := router.Group("/auth/v1")
	{
		auth.POST("/signup", s.handleSignup)
		auth.POST("/token", s.handleToken)
		auth.GET("/user", s.authorized, s.handleUser)
		auth.POST("/logout", s.authorized, s.handleLogout)
	}

	rest := router.Group("/rest/v1", s.authorized)
	{
		rest.GET("/tasks", s.handleListTasks)
		rest.POST("/tasks", s.handleCreateTask)
		rest.PATCH("/tasks/:id", s.handleUpdateTask)
		rest.DELETE("/tasks/:id", s.handleDeleteTask)
	}

	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the server on addr and blocks.
func (s *Server) Run(addr string) error {
	s.log.Info("listening", "addr", addr)
	return s.router.Run(addr)
}

// authorized validates the bearer token and stashes the session on the
// request context.
func (s *Server) authorized(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}

	s.mu.Lock()
	sess, found := s.sessions[token]
	if found && time.Now().After(sess.expiresAt) {
		delete(s.sessions, token)
		found = false
	}
	s.mu.Unlock()

	if !found {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	c.Set("userID", sess.userID)
	c.Set("refreshToken", sess.refreshToken)
	c.Next()
}
