package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type identityJSON struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type taskJSON struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

func toTaskJSON(t Task) taskJSON {
	return taskJSON{ID: t.ID, Title: t.Title, Done: t.Done, CreatedAt: t.CreatedAt}
}

// issueTokens mints an access/refresh pair for userID. The refresh
// token is persisted, the access token lives in memory until it
// expires.
func (s *Server) issueTokens(userID string) (access, refresh string, err error) {
	access = uuid.NewString()
	refresh = uuid.NewString()

	if err := s.store.InsertRefreshToken(refresh, userID); err != nil {
		return "", "", err
	}

	s.mu.Lock()
	s.sessions[access] = accessSession{
		userID:       userID,
		refreshToken: refresh,
		expiresAt:    time.Now().Add(accessTokenTTL),
	}
	s.mu.Unlock()

	return access, refresh, nil
}

func (s *Server) handleSignup(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid email required"})
		return
	}
	if len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hashing failed"})
		return
	}

	user, err := s.store.CreateUser(req.Email, string(hash))
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		s.log.Error("create user failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	access, refresh, err := s.issueTokens(user.ID)
	if err != nil {
		s.log.Error("issue tokens failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":          identityJSON{ID: user.ID, Email: user.Email},
		"access_token":  access,
		"token_type":    "bearer",
		"refresh_token": refresh,
		"expires_in":    int64(accessTokenTTL.Seconds()),
	})
}

// handleToken implements the OAuth2 token endpoint for the password
// and refresh_token grants, the two grants golang.org/x/oauth2 issues.
func (s *Server) handleToken(c *gin.Context) {
	switch c.PostForm("grant_type") {
	case "password":
		s.handlePasswordGrant(c)
	case "refresh_token":
		s.handleRefreshGrant(c)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_grant_type"})
	}
}

func (s *Server) handlePasswordGrant(c *gin.Context) {
	email := strings.TrimSpace(strings.ToLower(c.PostForm("username")))
	password := c.PostForm("password")

	user, err := s.store.UserByEmail(email)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_grant",
			"error_description": "invalid email or password",
		})
		return
	}

	s.writeTokenResponse(c, user.ID)
}

func (s *Server) handleRefreshGrant(c *gin.Context) {
	refresh := c.PostForm("refresh_token")
	userID, err := s.store.UserIDForRefreshToken(refresh)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_grant",
			"error_description": "refresh token expired or revoked",
		})
		return
	}

	// Rotate: the presented token is spent.
	if err := s.store.DeleteRefreshToken(refresh); err != nil {
		s.log.Error("refresh rotation failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	s.writeTokenResponse(c, userID)
}

func (s *Server) writeTokenResponse(c *gin.Context, userID string) {
	access, refresh, err := s.issueTokens(userID)
	if err != nil {
		s.log.Error("issue tokens failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"token_type":    "bearer",
		"refresh_token": refresh,
		"expires_in":    int64(accessTokenTTL.Seconds()),
	})
}

func (s *Server) handleUser(c *gin.Context) {
	user, err := s.store.UserByID(c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	c.JSON(http.StatusOK, identityJSON{ID: user.ID, Email: user.Email})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.store.DeleteRefreshToken(c.GetString("refreshToken")); err != nil {
		s.log.Error("logout failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// Drop any in-memory access sessions tied to the revoked refresh
	// token so the bearer stops working immediately.
	refresh := c.GetString("refreshToken")
	s.mu.Lock()
	for tok, sess := range s.sessions {
		if sess.refreshToken == refresh {
			delete(s.sessions, tok)
		}
	}
	s.mu.Unlock()

	c.Status(http.StatusNoContent)
}

func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.store.ListTasks(c.GetString("userID"))
	if err != nil {
		s.log.Error("list tasks failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]taskJSON, len(tasks))
	for i, t := range tasks {
		out[i] = toTaskJSON(t)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
		return
	}

	task, err := s.store.CreateTask(c.GetString("userID"), req.Title)
	if err != nil {
		s.log.Error("create task failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, toTaskJSON(task))
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var req struct {
		Title *string `json:"title"`
		Done  *bool   `json:"done"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
		return
	}

	err := s.store.UpdateTask(c.Param("id"), c.GetString("userID"), req.Title, req.Done)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		s.log.Error("update task failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	err := s.store.DeleteTask(c.Param("id"), c.GetString("userID"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		s.log.Error("delete task failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}
