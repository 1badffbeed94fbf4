package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/blogify/internal/common"
	"github.com/dmitrijs2005/blogify/internal/server/models"
	"github.com/gin-gonic/gin"
)

// ginUserKey is the gin.Context key holding the authenticated *models.User.
const ginUserKey = "user"

// CurrentUser returns the user attached to c by Authenticate, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ginUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// abort records err for errorTranslator and stops the chain.
func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Authenticate resolves the access token cookie to a freshly loaded user and
// attaches it to the request.
func (s *HTTPServer) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(common.AccessTokenCookieName)
		if err != nil || token == "" {
			abort(c, common.ErrMissingToken)
			return
		}

		user, err := s.users.Authenticate(c.Request.Context(), token)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(ginUserKey, user)
		c.Next()
	}
}

// OptionalAuthenticate attaches the user when a valid access token cookie is
// present and lets anonymous requests through otherwise. A bad or expired
// token is treated as anonymous; a store failure still aborts.
func (s *HTTPServer) OptionalAuthenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(common.AccessTokenCookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}

		user, err := s.users.Authenticate(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(ginUserKey, user)
		case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
			// anonymous
		default:
			abort(c, err)
			return
		}
		c.Next()
	}
}

// Authorize lets the request through only when the authenticated user's role
// is one of roles. It must run after Authenticate.
func Authorize(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abort(c, common.ErrMissingToken)
			return
		}
		if !slices.Contains(roles, user.Role) {
			abort(c, common.ErrorForbidden)
			return
		}
		c.Next()
	}
}

// requestLogger writes one access log line per request. Health checks and metrics
// scrapes are skipped.
func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = path
		}
		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}

		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error(ctx, "request", args...)
		case status >= http.StatusBadRequest:
			s.logger.Warn(ctx, "request", args...)
		default:
			s.logger.Info(ctx, "request", args...)
		}
	}
}

// recovery turns a panic into the generic 500 body.
func (s *HTTPServer) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		s.logger.Error(c.Request.Context(), "panic recovered",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"panic", strings.TrimSpace(fmt.Sprint(recovered)),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": internalErrorMessage})
	})
}
