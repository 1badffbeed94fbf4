package rest

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/blogify/internal/common"
	"github.com/dmitrijs2005/blogify/internal/server/observability"
	"github.com/gin-gonic/gin"
)

// registerRequest has no role field: new accounts are always Readers.
type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,maxbytes=72"`
	Name     string `json:"name" binding:"required,notblank"`
}

func (registerRequest) validationMessages() map[string]string {
	return map[string]string{
		"email":             "Invalid email address",
		"password":          "Password must be at least 6 characters long",
		"password.maxbytes": "Password must be at most 72 bytes long",
		"name":              "Name is required",
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (loginRequest) validationMessages() map[string]string {
	return map[string]string{
		"email":    "Invalid email address",
		"password": "Password is required",
	}
}

func (s *HTTPServer) register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		abort(c, err)
		return
	}

	session, err := s.users.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	observability.RecordAuth("register", err)
	if err != nil {
		abort(c, err)
		return
	}

	s.setAccessCookie(c, session.AccessToken)
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    session.User.Public(),
	})
}

func (s *HTTPServer) login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		abort(c, err)
		return
	}

	session, err := s.users.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	observability.RecordAuth("login", err)
	if err != nil {
		if errors.Is(err, common.ErrTooManyAttempts) {
			observability.LoginThrottledTotal.Inc()
		}
		abort(c, err)
		return
	}

	s.setAccessCookie(c, session.AccessToken)
	s.setRefreshCookie(c, session.RefreshToken)
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   session.AccessToken,
		"user":    session.User.Public(),
	})
}

func (s *HTTPServer) refresh(c *gin.Context) {
	token, err := c.Cookie(common.RefreshTokenCookieName)
	if err != nil || token == "" {
		observability.RecordAuth("refresh", common.ErrMissingToken)
		abort(c, common.ErrMissingToken)
		return
	}

	session, err := s.users.Refresh(c.Request.Context(), token)
	observability.RecordAuth("refresh", err)
	if err != nil {
		abort(c, err)
		return
	}

	s.setAccessCookie(c, session.AccessToken)
	s.setRefreshCookie(c, session.RefreshToken)
	c.JSON(http.StatusOK, gin.H{
		"message": "Token refreshed",
		"token":   session.AccessToken,
		"user":    session.User.Public(),
	})
}

func (s *HTTPServer) logout(c *gin.Context) {
	s.clearSessionCookies(c)
	observability.RecordAuth("logout", nil)
	c.Status(http.StatusNoContent)
}
